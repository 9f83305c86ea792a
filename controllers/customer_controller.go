package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chaser/models"
	"chaser/utils"
)

type CustomerController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewCustomerController(db *gorm.DB, logger *logrus.Logger) *CustomerController {
	return &CustomerController{DB: db, Logger: logger}
}

type contactInput struct {
	Role         string `json:"role"`
	Name         string `json:"name"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

type customerInput struct {
	Name     string         `json:"name" validate:"required,min=1"`
	Contacts []contactInput `json:"contacts" validate:"dive"`
}

func (cu *CustomerController) CreateCustomer(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input customerInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	customer := models.Customer{
		AccountID: user.AccountID,
		Name:      input.Name,
	}
	for _, ct := range input.Contacts {
		customer.Contacts = append(customer.Contacts, models.Contact{
			Role:         ct.Role,
			Name:         ct.Name,
			Email:        ct.Email,
			Phone:        ct.Phone,
			AddressLine1: ct.AddressLine1,
			AddressLine2: ct.AddressLine2,
			City:         ct.City,
			PostalCode:   ct.PostalCode,
			Country:      ct.Country,
		})
	}

	if err := cu.DB.Create(&customer).Error; err != nil {
		cu.Logger.WithError(err).Error("failed to create customer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create customer",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"customer": customer})
}

func (cu *CustomerController) GetCustomers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var customers []models.Customer
	if err := cu.DB.Preload("Contacts").
		Where("account_id = ?", user.AccountID).
		Find(&customers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch customers",
		})
	}
	return c.JSON(fiber.Map{"customers": customers})
}

func (cu *CustomerController) GetCustomer(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var customer models.Customer
	if err := cu.DB.Preload("Contacts").
		Where("id = ? AND account_id = ?", c.Params("id"), user.AccountID).
		First(&customer).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Customer not found"})
	}
	return c.JSON(fiber.Map{"customer": customer})
}

func (cu *CustomerController) UpdateCustomer(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var customer models.Customer
	if err := cu.DB.Where("id = ? AND account_id = ?", c.Params("id"), user.AccountID).
		First(&customer).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Customer not found"})
	}

	var input customerInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	err := cu.DB.Transaction(func(tx *gorm.DB) error {
		customer.Name = input.Name
		if err := tx.Save(&customer).Error; err != nil {
			return err
		}

		// Contacts are replaced wholesale; they are resolved at dispatch
		// time, so no delivery reprocessing is needed for contact edits.
		if err := tx.Where("customer_id = ?", customer.ID).Delete(&models.Contact{}).Error; err != nil {
			return err
		}
		for _, ct := range input.Contacts {
			contact := models.Contact{
				CustomerID:   customer.ID,
				Role:         ct.Role,
				Name:         ct.Name,
				Email:        ct.Email,
				Phone:        ct.Phone,
				AddressLine1: ct.AddressLine1,
				AddressLine2: ct.AddressLine2,
				City:         ct.City,
				PostalCode:   ct.PostalCode,
				Country:      ct.Country,
			}
			if err := tx.Create(&contact).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		cu.Logger.WithError(err).Error("failed to update customer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update customer",
		})
	}

	return cu.GetCustomer(c)
}

func (cu *CustomerController) DeleteCustomer(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	result := cu.DB.Where("id = ? AND account_id = ?", c.Params("id"), user.AccountID).
		Delete(&models.Customer{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete customer",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Customer not found"})
	}
	return c.JSON(fiber.Map{"message": "Customer deleted"})
}
