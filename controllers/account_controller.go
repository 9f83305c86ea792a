package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chaser/models"
	"chaser/utils"
)

type AccountController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewAccountController(db *gorm.DB, logger *logrus.Logger) *AccountController {
	return &AccountController{DB: db, Logger: logger}
}

func (ac *AccountController) GetAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var account models.Account
	if err := ac.DB.First(&account, user.AccountID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
	}
	return c.JSON(fiber.Map{"account": account})
}

type accountInput struct {
	Name      string `json:"name"`
	Timezone  string `json:"timezone"`
	ChaseHour *int   `json:"chase_hour" validate:"omitempty,gte=0,lte=23"`

	EmailEnabled  *bool `json:"email_enabled"`
	SMSEnabled    *bool `json:"sms_enabled"`
	LetterEnabled *bool `json:"letter_enabled"`

	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email" validate:"omitempty,email"`

	SMTPHost       string `json:"smtp_host"`
	SMTPPort       *int   `json:"smtp_port"`
	SMTPUsername   string `json:"smtp_username"`
	SMTPPassword   string `json:"smtp_password"`
	SMTPEncryption string `json:"smtp_encryption"`

	SMSGatewayURL string `json:"sms_gateway_url"`
	SMSGatewayKey string `json:"sms_gateway_key"`
}

// UpdateAccount edits tenant settings. Changing channel capability or the
// timezone moves the desired state of every document, so all of the account's
// deliveries are dirtied in the same transaction.
func (ac *AccountController) UpdateAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var account models.Account
	if err := ac.DB.First(&account, user.AccountID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
	}

	var input accountInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	reprocess := false

	if input.Name != "" {
		account.Name = input.Name
	}
	if input.Timezone != "" && input.Timezone != account.Timezone {
		account.Timezone = input.Timezone
		reprocess = true
	}
	if input.ChaseHour != nil {
		account.ChaseHour = *input.ChaseHour
	}
	if input.EmailEnabled != nil && *input.EmailEnabled != account.EmailEnabled {
		account.EmailEnabled = *input.EmailEnabled
		reprocess = true
	}
	if input.SMSEnabled != nil && *input.SMSEnabled != account.SMSEnabled {
		account.SMSEnabled = *input.SMSEnabled
		reprocess = true
	}
	if input.LetterEnabled != nil && *input.LetterEnabled != account.LetterEnabled {
		account.LetterEnabled = *input.LetterEnabled
		reprocess = true
	}

	if input.FromName != "" {
		account.FromName = input.FromName
	}
	if input.FromEmail != "" {
		account.FromEmail = input.FromEmail
	}
	if input.SMTPHost != "" {
		account.SMTPHost = input.SMTPHost
	}
	if input.SMTPPort != nil {
		account.SMTPPort = *input.SMTPPort
	}
	if input.SMTPUsername != "" {
		account.SMTPUsername = input.SMTPUsername
	}
	if input.SMTPEncryption != "" {
		account.SMTPEncryption = input.SMTPEncryption
	}
	if input.SMTPPassword != "" {
		encrypted, err := utils.Encrypt(input.SMTPPassword)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store SMTP password",
			})
		}
		account.SMTPPassword = encrypted
	}
	if input.SMSGatewayURL != "" {
		account.SMSGatewayURL = input.SMSGatewayURL
	}
	if input.SMSGatewayKey != "" {
		encrypted, err := utils.Encrypt(input.SMSGatewayKey)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store SMS gateway key",
			})
		}
		account.SMSGatewayKey = encrypted
	}

	err := ac.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&account).Error; err != nil {
			return err
		}
		if reprocess {
			return tx.Model(&models.Delivery{}).
				Where("document_id IN (?)",
					tx.Model(&models.Document{}).Select("id").Where("account_id = ?", account.ID)).
				Update("processed", false).Error
		}
		return nil
	})
	if err != nil {
		ac.Logger.WithError(err).Error("failed to update account")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update account",
		})
	}

	return c.JSON(fiber.Map{"account": account})
}
