package worker

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chaser/chase"
	"chaser/models"
)

const sweepLockKey = "chaser:sweep:lock"

// ChaseWorker is the periodic sweep: it finds deliveries whose schedule or
// document facts changed since their last successful reconciliation and runs
// the processor over them. Deliveries are fanned out to a bounded pool, one
// delivery reconciled sequentially, different deliveries in parallel; there
// is no shared state between them beyond their own database rows.
type ChaseWorker struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Logger    *logrus.Logger
	Processor *chase.Processor

	Interval    time.Duration
	PageSize    int
	Concurrency int

	instanceID string
}

func NewChaseWorker(db *gorm.DB, rdb *redis.Client, logger *logrus.Logger, interval time.Duration, pageSize, concurrency int) *ChaseWorker {
	if pageSize < 1 {
		pageSize = 200
	}
	if concurrency < 1 {
		concurrency = 4
	}
	return &ChaseWorker{
		DB:          db,
		Redis:       rdb,
		Logger:      logger,
		Processor:   chase.NewProcessor(db, logger),
		Interval:    interval,
		PageSize:    pageSize,
		Concurrency: concurrency,
		instanceID:  uuid.NewString(),
	}
}

func (cw *ChaseWorker) Start(ctx context.Context) {
	// Let the server finish starting up before the first sweep.
	time.Sleep(5 * time.Second)

	cw.Logger.Info("chase sweep worker started")

	ticker := time.NewTicker(cw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Logger.Info("chase sweep worker shutting down")
			return
		case <-ticker.C:
			cw.Sweep(ctx)
		}
	}
}

// Sweep reconciles every dirty delivery, paginated so an abort mid-sweep
// simply leaves the remainder dirty for the next run. With Redis configured
// only one instance sweeps at a time.
func (cw *ChaseWorker) Sweep(ctx context.Context) {
	if !cw.acquireLock(ctx) {
		cw.Logger.Debug("sweep lock held elsewhere, skipping")
		return
	}
	defer cw.releaseLock(ctx)

	jobs := make(chan uint)
	var wg sync.WaitGroup
	for i := 0; i < cw.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				cw.processDelivery(ctx, id)
			}
		}()
	}

	var lastID uint
	pages := 0
	for {
		if ctx.Err() != nil {
			break
		}

		var batch []models.Delivery
		err := cw.DB.WithContext(ctx).
			Select("id").
			Where("processed = ? AND id > ?", false, lastID).
			Order("id asc").
			Limit(cw.PageSize).
			Find(&batch).Error
		if err != nil {
			cw.Logger.WithError(err).Error("failed to page dirty deliveries")
			break
		}
		if len(batch) == 0 {
			break
		}

		for _, d := range batch {
			jobs <- d.ID
			lastID = d.ID
		}
		pages++
		if len(batch) < cw.PageSize {
			break
		}
	}

	close(jobs)
	wg.Wait()

	if pages > 0 {
		cw.Logger.WithField("pages", pages).Debug("sweep complete")
	}
}

func (cw *ChaseWorker) processDelivery(ctx context.Context, deliveryID uint) {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			cw.Logger.WithField("delivery_id", deliveryID).Errorf("panic while reconciling: %v", r)
		}
	}()

	if err := cw.Processor.Process(ctx, deliveryID); err != nil {
		// Processed stays false, the next sweep retries.
		sentry.CaptureException(err)
	}
}

// acquireLock takes the cross-instance sweep lease. Without Redis this is a
// single-instance deployment and the lock degrades to a no-op.
func (cw *ChaseWorker) acquireLock(ctx context.Context) bool {
	if cw.Redis == nil {
		return true
	}
	ttl := 2 * cw.Interval
	if ttl < time.Minute {
		ttl = time.Minute
	}
	ok, err := cw.Redis.SetNX(ctx, sweepLockKey, cw.instanceID, ttl).Result()
	if err != nil {
		cw.Logger.WithError(err).Warn("sweep lock unavailable, proceeding without it")
		return true
	}
	return ok
}

func (cw *ChaseWorker) releaseLock(ctx context.Context) {
	if cw.Redis == nil {
		return
	}
	// Only release a lease we still hold; an expired lease may belong to
	// another instance by now.
	val, err := cw.Redis.Get(ctx, sweepLockKey).Result()
	if err != nil || val != cw.instanceID {
		return
	}
	cw.Redis.Del(ctx, sweepLockKey)
}
