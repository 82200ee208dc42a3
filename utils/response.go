package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// OK writes a 200 success envelope
func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(Envelope{Success: true, Data: data})
}

// OKMessage writes a 200 success envelope with a message and optional data
func OKMessage(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(Envelope{Success: true, Data: data, Message: message})
}

// Created writes a 201 success envelope
func Created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Success: true, Data: data, Message: message})
}

// Fail writes an error envelope with the given status
func Fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{Success: false, Error: message})
}

// FailFromError maps domain errors to their status codes. Anything unknown is
// logged and reported as a generic 500.
func FailFromError(c *fiber.Ctx, err error, fallback string) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return Fail(c, fiber.StatusBadRequest, verr.Message)
	case errors.Is(err, ErrNotFound):
		return Fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Fail(c, fiber.StatusNotFound, "not found")
	case errors.Is(err, ErrForbidden):
		return Fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrConflict):
		return Fail(c, fiber.StatusConflict, err.Error())
	}

	logrus.WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}).WithError(err).Error(fallback)
	return Fail(c, fiber.StatusInternalServerError, fallback)
}
