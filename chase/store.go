package chase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chaser/models"
)

// SendStore is the persistence the reconciliation pass runs against. Keeping
// it an interface lets the engine's semantics be tested without a database;
// the production implementation wraps the pass's GORM transaction.
type SendStore interface {
	ListByDocument(ctx context.Context, documentID uint) ([]models.ScheduledSend, error)
	Create(ctx context.Context, send *models.ScheduledSend) error
	Update(ctx context.Context, send *models.ScheduledSend) error
	Delete(ctx context.Context, id uint) error
}

type gormSendStore struct {
	db *gorm.DB
}

func (s *gormSendStore) ListByDocument(ctx context.Context, documentID uint) ([]models.ScheduledSend, error) {
	return models.ScheduledSendsForDocument(s.db.WithContext(ctx), documentID)
}

func (s *gormSendStore) Create(ctx context.Context, send *models.ScheduledSend) error {
	return s.db.WithContext(ctx).Create(send).Error
}

func (s *gormSendStore) Update(ctx context.Context, send *models.ScheduledSend) error {
	return s.db.WithContext(ctx).Save(send).Error
}

func (s *gormSendStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Unscoped().Delete(&models.ScheduledSend{}, id).Error
}

// Processor is the database-backed entry point the sweep calls per delivery.
// One Process call is one unit of work: the whole reconciliation runs inside
// a single transaction and the delivery's processed flag only flips when
// everything in it committed, so a failed pass is simply retried by the next
// sweep.
type Processor struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Now    func() time.Time
}

func NewProcessor(db *gorm.DB, logger *logrus.Logger) *Processor {
	return &Processor{DB: db, Logger: logger, Now: time.Now}
}

func (p *Processor) Process(ctx context.Context, deliveryID uint) error {
	var delivery models.Delivery
	if err := p.DB.WithContext(ctx).First(&delivery, deliveryID).Error; err != nil {
		return fmt.Errorf("loading delivery %d: %w", deliveryID, err)
	}
	if delivery.Processed {
		return nil
	}

	var doc models.Document
	if err := p.DB.WithContext(ctx).Preload("Account").First(&doc, delivery.DocumentID).Error; err != nil {
		return fmt.Errorf("loading document %d: %w", delivery.DocumentID, err)
	}

	in := ReconcileInput{
		Delivery: delivery,
		Facts: DocumentFacts{
			IssueDate: doc.IssueDate,
			DueDate:   doc.DueDate,
			Location:  doc.Account.Location(),
		},
		Channels: doc.Account.Channels(),
		Now:      p.Now(),
	}

	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := Reconcile(ctx, &gormSendStore{db: tx}, in); err != nil {
			return err
		}
		return tx.Model(&models.Delivery{}).
			Where("id = ?", delivery.ID).
			Update("processed", true).Error
	})
	if err != nil {
		p.Logger.WithFields(logrus.Fields{
			"delivery_id": delivery.ID,
			"document_id": delivery.DocumentID,
		}).WithError(err).Error("chase reconciliation failed")
		return err
	}

	p.Logger.WithFields(logrus.Fields{
		"delivery_id": delivery.ID,
		"document_id": delivery.DocumentID,
		"steps":       len(delivery.Schedule),
	}).Debug("chase reconciliation complete")
	return nil
}
