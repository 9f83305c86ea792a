package worker

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chaser/models"
)

const purgeRetentionDays = 30

// CronManager runs the low-frequency housekeeping jobs around the two
// tick-driven workers.
type CronManager struct {
	cron   *cron.Cron
	db     *gorm.DB
	redis  *redis.Client
	logger *logrus.Logger
}

func NewCronManager(db *gorm.DB, rdb *redis.Client, logger *logrus.Logger) *CronManager {
	return &CronManager{
		cron:   cron.New(),
		db:     db,
		redis:  rdb,
		logger: logger,
	}
}

func (cm *CronManager) SetupJobs() error {
	// Daily at 03:00: purge planned-send history nobody can act on anymore.
	// Replaced rows are frozen interior links of their chain and canceled rows
	// were superseded by a disable; past the retention window both are noise.
	_, err := cm.cron.AddFunc("0 3 * * *", func() {
		cutoff := time.Now().AddDate(0, 0, -purgeRetentionDays)
		res := cm.db.Unscoped().
			Where("(replacement_id IS NOT NULL OR canceled = ?) AND updated_at < ?", true, cutoff).
			Delete(&models.ScheduledSend{})
		if res.Error != nil {
			cm.logger.WithError(res.Error).Error("send history purge failed")
			return
		}
		if res.RowsAffected > 0 {
			cm.logger.WithField("purged", res.RowsAffected).Info("purged stale planned sends")
		}
	})
	if err != nil {
		return err
	}

	// Hourly: clear a leaked sweep lock. A healthy lock always carries a TTL;
	// one without expiry survived a Redis config hiccup and would block the
	// sweep forever.
	_, err = cm.cron.AddFunc("30 * * * *", func() {
		if cm.redis == nil {
			return
		}
		ctx := context.Background()
		ttl, err := cm.redis.TTL(ctx, sweepLockKey).Result()
		if err != nil {
			cm.logger.WithError(err).Warn("sweep lock TTL check failed")
			return
		}
		if ttl == -1 {
			if err := cm.redis.Del(ctx, sweepLockKey).Err(); err != nil {
				cm.logger.WithError(err).Warn("stale sweep lock removal failed")
				return
			}
			cm.logger.Warn("removed sweep lock without expiry")
		}
	})
	if err != nil {
		return err
	}

	// Hourly: surface reconciliation backlog. A delivery staying dirty for
	// a long time means sweeps keep failing on it.
	_, err = cm.cron.AddFunc("0 * * * *", func() {
		var dirty int64
		if err := cm.db.Model(&models.Delivery{}).
			Where("processed = ?", false).
			Count(&dirty).Error; err != nil {
			cm.logger.WithError(err).Error("backlog check failed")
			return
		}
		if dirty > 0 {
			cm.logger.WithField("dirty_deliveries", dirty).Info("reconciliation backlog")
		}
	})
	return err
}

func (cm *CronManager) Start() {
	cm.cron.Start()
}

func (cm *CronManager) Stop() {
	cm.cron.Stop()
}
