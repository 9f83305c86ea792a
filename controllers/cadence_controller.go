package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chaser/models"
	"chaser/utils"
)

type CadenceController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewCadenceController(db *gorm.DB, logger *logrus.Logger) *CadenceController {
	return &CadenceController{DB: db, Logger: logger}
}

type cadenceInput struct {
	Name      string             `json:"name" validate:"required,min=1"`
	Steps     []models.ChaseStep `json:"steps"`
	IsDefault bool               `json:"is_default"`
}

func (cc *CadenceController) CreateCadence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input cadenceInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := utils.ValidateSchedule(input.Steps); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	cadence := models.Cadence{
		AccountID: user.AccountID,
		Name:      input.Name,
		Steps:     input.Steps,
		IsDefault: input.IsDefault,
	}
	if err := cc.DB.Create(&cadence).Error; err != nil {
		cc.Logger.WithError(err).Error("failed to create cadence")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create cadence",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"cadence": cadence})
}

func (cc *CadenceController) GetCadences(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var cadences []models.Cadence
	if err := cc.DB.Where("account_id = ?", user.AccountID).Find(&cadences).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch cadences",
		})
	}
	return c.JSON(fiber.Map{"cadences": cadences})
}

func (cc *CadenceController) GetCadence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var cadence models.Cadence
	if err := cc.DB.Where("id = ? AND account_id = ?", c.Params("id"), user.AccountID).
		First(&cadence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Cadence not found"})
	}
	return c.JSON(fiber.Map{"cadence": cadence})
}

func (cc *CadenceController) UpdateCadence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var cadence models.Cadence
	if err := cc.DB.Where("id = ? AND account_id = ?", c.Params("id"), user.AccountID).
		First(&cadence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Cadence not found"})
	}

	var input cadenceInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := utils.ValidateSchedule(input.Steps); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	// Editing a cadence never reaches documents it was applied to: applying
	// copies the steps, so existing deliveries keep chasing on their own copy.
	cadence.Name = input.Name
	cadence.Steps = input.Steps
	cadence.IsDefault = input.IsDefault
	if err := cc.DB.Save(&cadence).Error; err != nil {
		cc.Logger.WithError(err).Error("failed to update cadence")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update cadence",
		})
	}

	return c.JSON(fiber.Map{"cadence": cadence})
}

func (cc *CadenceController) DeleteCadence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	result := cc.DB.Where("id = ? AND account_id = ?", c.Params("id"), user.AccountID).
		Delete(&models.Cadence{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete cadence",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Cadence not found"})
	}
	return c.JSON(fiber.Map{"message": "Cadence deleted"})
}
