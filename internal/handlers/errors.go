package handlers

import (
	"fmt"
	"regexp"

	"storefront/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

var phonePattern = regexp.MustCompile(`^[+]?[0-9]{10,15}$`)

// newValidator returns a validator that also understands the "phone" tag. It panics if
// the tag cannot be registered.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register phone validation: %v", err))
	}
	return v
}

// validateRequest runs struct validation and writes a 400 response on failure.
// It returns true when the request is valid.
func validateRequest(c *fiber.Ctx, v *validator.Validate, req interface{}) (bool, error) {
	err := v.Struct(req)
	if err == nil {
		return true, nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}

// badBody writes the response for an unparsable request body.
func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// statusFor maps a business error kind to an HTTP status.
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindNotFound:
		return fiber.StatusNotFound
	case models.KindInsufficientStock, models.KindConcurrencyConflict:
		return fiber.StatusConflict
	case models.KindInvalidOperation:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as a JSON error. Business errors carry their kind; anything
// else is an internal failure whose details are only logged.
func respondError(c *fiber.Ctx, logger *log.Entry, message string, err error) error {
	kind := models.KindOf(err)
	status := statusFor(kind)

	entry := logger.WithFields(log.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"status": status,
	}).WithError(err)

	if kind == "" {
		entry.Error(message)
		return c.Status(status).JSON(fiber.Map{
			"message": message,
			"error":   "internal server error",
		})
	}

	entry.Info(message)
	retryable := models.IsRetryable(err)
	if retryable {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(fiber.Map{
		"message":   message,
		"error":     err.Error(),
		"kind":      kind,
		"retryable": retryable,
	})
}
