package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	"chaser/config"
	controller "chaser/controllers"
	"chaser/middleware"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	log := config.GetLogger()

	// Public auth endpoints
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	accountController := controller.NewAccountController(db, log)
	cadenceController := controller.NewCadenceController(db, log)
	customerController := controller.NewCustomerController(db, log)
	documentController := controller.NewDocumentController(db, log)
	chasingController := controller.NewChasingController(db, log)

	api := app.Group("/api/v1", middleware.Protected(), middleware.APIRateLimiter(),
		logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))

	api.Get("/me", controller.GetCurrentUser)

	account := api.Group("/account")
	account.Get("/", accountController.GetAccount)
	account.Put("/", accountController.UpdateAccount)

	cadence := api.Group("/cadences")
	cadence.Post("/", cadenceController.CreateCadence)
	cadence.Get("/", cadenceController.GetCadences)
	cadence.Get("/:id", cadenceController.GetCadence)
	cadence.Put("/:id", cadenceController.UpdateCadence)
	cadence.Delete("/:id", cadenceController.DeleteCadence)

	customer := api.Group("/customers")
	customer.Post("/", customerController.CreateCustomer)
	customer.Get("/", customerController.GetCustomers)
	customer.Get("/:id", customerController.GetCustomer)
	customer.Put("/:id", customerController.UpdateCustomer)
	customer.Delete("/:id", customerController.DeleteCustomer)

	document := api.Group("/documents")
	document.Post("/", documentController.CreateDocument)
	document.Get("/", documentController.GetDocuments)
	document.Get("/:id", documentController.GetDocument)
	document.Put("/:id", documentController.UpdateDocument)
	document.Delete("/:id", documentController.DeleteDocument)

	chasing := document.Group("/:id/chasing")
	chasing.Get("/", chasingController.GetSchedule)
	chasing.Put("/", chasingController.UpdateSchedule)
	chasing.Post("/apply-cadence", chasingController.ApplyCadence)
	chasing.Post("/enable", chasingController.EnableChasing)
	chasing.Post("/disable", chasingController.DisableChasing)
	chasing.Get("/timeline", chasingController.PreviewTimeline)

	document.Get("/:id/sends", chasingController.ListSends)
}
