package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chaser/chase"
	"chaser/models"
	"chaser/utils"
)

// ChasingController exposes a document's chasing schedule and its planned
// sends. Every mutation here clears the delivery's processed flag; the actual
// reconciliation happens asynchronously in the sweep worker.
type ChasingController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewChasingController(db *gorm.DB, logger *logrus.Logger) *ChasingController {
	return &ChasingController{DB: db, Logger: logger}
}

// loadDelivery fetches the delivery of an account-owned document.
func (cc *ChasingController) loadDelivery(c *fiber.Ctx) (*models.Document, *models.Delivery, error) {
	user := c.Locals("user").(*models.User)

	var doc models.Document
	if err := cc.DB.Preload("Delivery").
		Where("id = ? AND account_id = ?", c.Params("id"), user.AccountID).
		First(&doc).Error; err != nil {
		return nil, nil, err
	}
	return &doc, &doc.Delivery, nil
}

func (cc *ChasingController) GetSchedule(c *fiber.Ctx) error {
	_, delivery, err := cc.loadDelivery(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	}
	return c.JSON(fiber.Map{"delivery": delivery})
}

type scheduleInput struct {
	Steps           []models.ChaseStep `json:"steps"`
	ContactRole     string             `json:"contact_role"`
	EmailRecipients []string           `json:"email_recipients"`
	SMSRecipient    string             `json:"sms_recipient"`
}

// UpdateSchedule replaces a document's chasing schedule. Steps are diffed
// against the stored schedule so unchanged steps keep their identity and the
// planned sends hanging off them survive the edit untouched.
func (cc *ChasingController) UpdateSchedule(c *fiber.Ctx) error {
	_, delivery, err := cc.loadDelivery(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	}

	var input scheduleInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateSchedule(input.Steps); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	delivery.Schedule = chase.Inspect(delivery.Schedule, input.Steps)
	if input.ContactRole != "" {
		delivery.ContactRole = input.ContactRole
	}
	delivery.EmailRecipients = input.EmailRecipients
	delivery.SMSRecipient = input.SMSRecipient
	delivery.Processed = false

	if err := cc.DB.Save(delivery).Error; err != nil {
		cc.Logger.WithError(err).Error("failed to update schedule")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update schedule",
		})
	}

	return c.JSON(fiber.Map{"delivery": delivery})
}

// ApplyCadence copies a cadence's steps onto the document. The copies arrive
// without ids, so the inspector treats every step as newly authored.
func (cc *ChasingController) ApplyCadence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	_, delivery, err := cc.loadDelivery(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	}

	var input struct {
		CadenceID uint `json:"cadence_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var cadence models.Cadence
	if err := cc.DB.Where("id = ? AND account_id = ?", input.CadenceID, user.AccountID).
		First(&cadence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Cadence not found"})
	}

	steps := make([]models.ChaseStep, len(cadence.Steps))
	for i, s := range cadence.Steps {
		s.ID = ""
		steps[i] = s
	}

	delivery.Schedule = chase.Inspect(delivery.Schedule, steps)
	delivery.Processed = false
	if err := cc.DB.Save(delivery).Error; err != nil {
		cc.Logger.WithError(err).Error("failed to apply cadence")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to apply cadence",
		})
	}

	return c.JSON(fiber.Map{"delivery": delivery})
}

func (cc *ChasingController) EnableChasing(c *fiber.Ctx) error {
	return cc.setDisabled(c, false)
}

func (cc *ChasingController) DisableChasing(c *fiber.Ctx) error {
	return cc.setDisabled(c, true)
}

func (cc *ChasingController) setDisabled(c *fiber.Ctx, disabled bool) error {
	_, delivery, err := cc.loadDelivery(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	}

	if delivery.Disabled != disabled {
		delivery.Disabled = disabled
		delivery.Processed = false
		if err := cc.DB.Save(delivery).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update delivery",
			})
		}
	}

	return c.JSON(fiber.Map{"delivery": delivery})
}

// PreviewTimeline computes the concrete send times the current schedule
// implies, without touching any planned sends.
func (cc *ChasingController) PreviewTimeline(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	doc, delivery, err := cc.loadDelivery(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	}

	var account models.Account
	if err := cc.DB.First(&account, user.AccountID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load account",
		})
	}

	timeline := chase.BuildTimeline(chase.DocumentFacts{
		IssueDate: doc.IssueDate,
		DueDate:   doc.DueDate,
		Location:  account.Location(),
	}, delivery.Schedule, time.Now())

	type segmentView struct {
		Step      models.ChaseStep `json:"step"`
		SendTimes []time.Time      `json:"send_times"`
	}
	view := make([]segmentView, len(timeline))
	for i, seg := range timeline {
		view[i] = segmentView{Step: seg.Step, SendTimes: seg.SendTimes}
	}

	return c.JSON(fiber.Map{"timeline": view})
}

// ListSends returns every planned send of the document, replacement chains
// included, so clients can render full chase history.
func (cc *ChasingController) ListSends(c *fiber.Ctx) error {
	doc, _, err := cc.loadDelivery(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	}

	sends, err := models.ScheduledSendsForDocument(cc.DB, doc.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch planned sends",
		})
	}
	return c.JSON(fiber.Map{"sends": sends})
}
