package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"
)

// setupMiddleware configures global middleware for the Fiber app
func setupMiddleware(app *fiber.App) {
	// Recovery middleware catches panics
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Logger middleware for request logging
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	// CORS middleware for cross-origin requests
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
	}))
}

// newErrorHandler builds the app error handler. Expected errors carry a
// fiber status; anything else is logged and reported as a 500 without
// leaking the underlying message.
func newErrorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fiberErr *fiber.Error
		if ok := errors.As(err, &fiberErr); ok {
			code = fiberErr.Code
			message = fiberErr.Message
		} else {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("Unhandled API error")
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
			"code":  code,
		})
	}
}
