package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/badoux/checkmail"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chaser/models"
	"chaser/utils"
)

// DispatchWorker performs planned sends whose time has arrived. It is the
// only writer of the Sent/Skipped flags; the reconciliation pass never
// touches those, so the two writers cannot conflict on a row.
type DispatchWorker struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Mailer *utils.ChaseMailer
	SMS    *utils.SMSClient

	Interval  time.Duration
	BatchSize int
}

func NewDispatchWorker(db *gorm.DB, logger *logrus.Logger, interval time.Duration, batchSize int) *DispatchWorker {
	if batchSize < 1 {
		batchSize = 100
	}
	return &DispatchWorker{
		DB:        db,
		Logger:    logger,
		Mailer:    utils.NewChaseMailer(),
		SMS:       utils.NewSMSClient(),
		Interval:  interval,
		BatchSize: batchSize,
	}
}

func (dw *DispatchWorker) Start(ctx context.Context) {
	time.Sleep(5 * time.Second)

	dw.Logger.Info("dispatch worker started")

	ticker := time.NewTicker(dw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			dw.Logger.Info("dispatch worker shutting down")
			return
		case <-ticker.C:
			dw.DispatchDue(ctx)
		}
	}
}

// DispatchDue sends every actionable planned send whose scheduled time has
// passed. A transport failure leaves the row unattempted so the next tick
// retries it; retry policy beyond that belongs to the transport layer.
func (dw *DispatchWorker) DispatchDue(ctx context.Context) {
	sends, err := models.DueScheduledSends(dw.DB.WithContext(ctx), time.Now(), dw.BatchSize)
	if err != nil {
		dw.Logger.WithError(err).Error("failed to fetch due sends")
		return
	}

	for _, send := range sends {
		if ctx.Err() != nil {
			return
		}
		if err := dw.dispatchOne(ctx, send); err != nil {
			sentry.CaptureException(err)
			dw.Logger.WithFields(logrus.Fields{
				"send_id":  send.ID,
				"channel":  send.Channel,
				"document": send.DocumentID,
			}).WithError(err).Error("dispatch failed")
		}
	}
}

func (dw *DispatchWorker) dispatchOne(ctx context.Context, send models.ScheduledSend) error {
	var doc models.Document
	if err := dw.DB.WithContext(ctx).
		Preload("Account").
		Preload("Customer.Contacts").
		First(&doc, send.DocumentID).Error; err != nil {
		return fmt.Errorf("loading document %d: %w", send.DocumentID, err)
	}

	// Capability is re-checked at send time: losing a channel after planning
	// skips the send rather than failing it.
	if !doc.Account.Channels().Supports(send.Channel) {
		return dw.markSkipped(ctx, &send, "channel not supported by account")
	}
	if doc.Paid {
		return dw.markSkipped(ctx, &send, "document already paid")
	}

	var err error
	switch send.Channel {
	case models.ChannelEmail:
		err = dw.sendEmail(&doc, &send)
	case models.ChannelSMS:
		err = dw.sendSMS(&doc, &send)
	case models.ChannelLetter:
		err = dw.sendLetter(&doc, &send)
	default:
		return dw.markSkipped(ctx, &send, "unknown channel")
	}
	if err != nil {
		return err
	}

	// Only the attempt flags are written back. Everything else on the row
	// belongs to the reconciler, which compares it against desired state.
	now := time.Now()
	send.Sent = true
	send.SentAt = &now
	if err := dw.DB.WithContext(ctx).Model(&send).
		Updates(map[string]interface{}{"sent": true, "sent_at": now}).Error; err != nil {
		return fmt.Errorf("marking send %d attempted: %w", send.ID, err)
	}

	dw.Logger.WithFields(logrus.Fields{
		"send_id":  send.ID,
		"channel":  send.Channel,
		"document": doc.ID,
	}).Info("chase sent")
	return nil
}

func (dw *DispatchWorker) markSkipped(ctx context.Context, send *models.ScheduledSend, reason string) error {
	send.Skipped = true
	if err := dw.DB.WithContext(ctx).Model(send).Update("skipped", true).Error; err != nil {
		return fmt.Errorf("marking send %d skipped: %w", send.ID, err)
	}
	dw.Logger.WithFields(logrus.Fields{
		"send_id": send.ID,
		"reason":  reason,
	}).Info("chase skipped")
	return nil
}

func (dw *DispatchWorker) sendEmail(doc *models.Document, send *models.ScheduledSend) error {
	valid := validEmailRecipients(doc, send)
	if len(valid) == 0 {
		return fmt.Errorf("document %d: no valid email recipients for role %q", doc.ID, send.Parameters.Role)
	}

	return dw.Mailer.Send(&doc.Account, valid, utils.ChaseEmailData{
		Subject:        fmt.Sprintf("Payment reminder: invoice %s", doc.Number),
		CustomerName:   doc.Customer.Name,
		DocumentNumber: doc.Number,
		Amount:         formatAmount(doc.Currency, doc.AmountCents),
		DueDate:        formatDueDate(doc.DueDate),
	})
}

// validEmailRecipients resolves and syntax-checks the recipient list into a
// fresh slice. The row's stored parameters are reconciler state and must not
// be aliased: filtering in place would persist a rewritten list on the next
// row write and make every later reconciliation see a changed attempted row.
func validEmailRecipients(doc *models.Document, send *models.ScheduledSend) []string {
	var candidates []string
	if len(send.Parameters.Emails) > 0 {
		candidates = send.Parameters.Emails
	} else {
		for _, contact := range doc.Customer.Contacts {
			if contact.Email == "" {
				continue
			}
			if send.Parameters.Role != "" && contact.Role != send.Parameters.Role {
				continue
			}
			candidates = append(candidates, contact.Email)
		}
	}

	valid := make([]string, 0, len(candidates))
	for _, addr := range candidates {
		if checkmail.ValidateFormat(addr) == nil {
			valid = append(valid, addr)
		}
	}
	return valid
}

func (dw *DispatchWorker) sendSMS(doc *models.Document, send *models.ScheduledSend) error {
	phone := send.Parameters.Phone
	if phone == "" {
		for _, contact := range doc.Customer.Contacts {
			if contact.Phone != "" {
				phone = contact.Phone
				break
			}
		}
	}
	if phone == "" {
		return fmt.Errorf("document %d: no phone number for SMS chase", doc.ID)
	}

	message := fmt.Sprintf("Reminder from %s: invoice %s for %s is awaiting payment.",
		doc.Account.Name, doc.Number, formatAmount(doc.Currency, doc.AmountCents))
	return dw.SMS.Send(&doc.Account, phone, message)
}

// sendLetter hands the letter off to the outbound post log. There is no
// letter provider integration yet; the structured log line is what the
// fulfilment side consumes.
// TODO: replace with a real print-provider API once one is chosen.
func (dw *DispatchWorker) sendLetter(doc *models.Document, send *models.ScheduledSend) error {
	var address models.Contact
	found := false
	for _, contact := range doc.Customer.Contacts {
		if contact.AddressLine1 == "" {
			continue
		}
		if send.Parameters.Role != "" && contact.Role != send.Parameters.Role {
			continue
		}
		address = contact
		found = true
		break
	}
	if !found {
		return fmt.Errorf("document %d: no postal address for letter chase", doc.ID)
	}

	dw.Logger.WithFields(logrus.Fields{
		"document": doc.ID,
		"invoice":  doc.Number,
		"name":     address.Name,
		"line1":    address.AddressLine1,
		"city":     address.City,
		"postcode": address.PostalCode,
		"country":  address.Country,
	}).Info("letter queued for fulfilment")
	return nil
}

func formatAmount(currency string, cents int64) string {
	return fmt.Sprintf("%s %.2f", currency, float64(cents)/100)
}

func formatDueDate(due *time.Time) string {
	if due == nil {
		return ""
	}
	return due.Format("2 January 2006")
}
