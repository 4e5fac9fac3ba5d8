package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/provider"
)

func toHTTPError(err error) error {
	var gatewayErr *provider.GatewayError
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConfiguration):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	case errors.As(err, &gatewayErr):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}

func invalidBody() error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
}
