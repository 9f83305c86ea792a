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

type DocumentController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewDocumentController(db *gorm.DB, logger *logrus.Logger) *DocumentController {
	return &DocumentController{DB: db, Logger: logger}
}

type documentInput struct {
	CustomerID  uint       `json:"customer_id" validate:"required"`
	Number      string     `json:"number" validate:"required"`
	Currency    string     `json:"currency"`
	AmountCents int64      `json:"amount_cents" validate:"gte=0"`
	IssueDate   time.Time  `json:"issue_date" validate:"required"`
	DueDate     *time.Time `json:"due_date"`
	CadenceID   *uint      `json:"cadence_id"`
}

// CreateDocument creates a receivable together with its delivery. The
// delivery starts from the named cadence, the account default cadence, or
// empty; cadence steps are copied without ids so the inspector assigns fresh
// identities.
func (dc *DocumentController) CreateDocument(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input documentInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var customer models.Customer
	if err := dc.DB.Where("id = ? AND account_id = ?", input.CustomerID, user.AccountID).
		First(&customer).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Customer not found"})
	}

	var steps []models.ChaseStep
	cadence, err := dc.resolveCadence(user.AccountID, input.CadenceID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cadence not found"})
	}
	if cadence != nil {
		steps = make([]models.ChaseStep, len(cadence.Steps))
		for i, s := range cadence.Steps {
			s.ID = ""
			steps[i] = s
		}
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	var doc models.Document
	err = dc.DB.Transaction(func(tx *gorm.DB) error {
		doc = models.Document{
			AccountID:   user.AccountID,
			CustomerID:  customer.ID,
			Number:      input.Number,
			Currency:    currency,
			AmountCents: input.AmountCents,
			IssueDate:   input.IssueDate,
			DueDate:     input.DueDate,
		}
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}

		delivery := models.Delivery{
			DocumentID: doc.ID,
			Schedule:   chase.Inspect(nil, steps),
		}
		return tx.Create(&delivery).Error
	})
	if err != nil {
		dc.Logger.WithError(err).Error("failed to create document")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"document": doc})
}

func (dc *DocumentController) resolveCadence(accountID uint, cadenceID *uint) (*models.Cadence, error) {
	var cadence models.Cadence
	if cadenceID != nil {
		if err := dc.DB.Where("id = ? AND account_id = ?", *cadenceID, accountID).
			First(&cadence).Error; err != nil {
			return nil, err
		}
		return &cadence, nil
	}
	err := dc.DB.Where("account_id = ? AND is_default = ?", accountID, true).
		First(&cadence).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cadence, nil
}

func (dc *DocumentController) GetDocuments(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var docs []models.Document
	if err := dc.DB.Preload("Delivery").
		Where("account_id = ?", user.AccountID).
		Find(&docs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch documents",
		})
	}
	return c.JSON(fiber.Map{"documents": docs})
}

func (dc *DocumentController) GetDocument(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var doc models.Document
	if err := dc.DB.Preload("Delivery").
		Where("id = ? AND account_id = ?", c.Params("id"), user.AccountID).
		First(&doc).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	}
	return c.JSON(fiber.Map{"document": doc})
}

// UpdateDocument edits document facts. Date changes move computed send times,
// so the delivery is dirtied inside the same transaction.
func (dc *DocumentController) UpdateDocument(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var doc models.Document
	if err := dc.DB.Where("id = ? AND account_id = ?", c.Params("id"), user.AccountID).
		First(&doc).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	}

	var input struct {
		Number      *string    `json:"number"`
		AmountCents *int64     `json:"amount_cents"`
		IssueDate   *time.Time `json:"issue_date"`
		DueDate     *time.Time `json:"due_date"`
		ClearDue    bool       `json:"clear_due_date"`
		Paid        *bool      `json:"paid"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	datesChanged := input.IssueDate != nil || input.DueDate != nil || input.ClearDue

	if input.Number != nil {
		doc.Number = *input.Number
	}
	if input.AmountCents != nil {
		doc.AmountCents = *input.AmountCents
	}
	if input.IssueDate != nil {
		doc.IssueDate = *input.IssueDate
	}
	if input.DueDate != nil {
		doc.DueDate = input.DueDate
	}
	if input.ClearDue {
		doc.DueDate = nil
	}
	if input.Paid != nil {
		doc.Paid = *input.Paid
	}

	err := dc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&doc).Error; err != nil {
			return err
		}
		if datesChanged {
			return doc.Dirty(tx)
		}
		return nil
	})
	if err != nil {
		dc.Logger.WithError(err).Error("failed to update document")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update document",
		})
	}

	return c.JSON(fiber.Map{"document": doc})
}

// DeleteDocument removes a document with its delivery and planned sends.
func (dc *DocumentController) DeleteDocument(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var doc models.Document
	if err := dc.DB.Where("id = ? AND account_id = ?", c.Params("id"), user.AccountID).
		First(&doc).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	}

	err := dc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", doc.ID).Delete(&models.ScheduledSend{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&models.Delivery{}).Error; err != nil {
			return err
		}
		return tx.Delete(&doc).Error
	})
	if err != nil {
		dc.Logger.WithError(err).Error("failed to delete document")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete document",
		})
	}

	return c.JSON(fiber.Map{"message": "Document deleted"})
}
