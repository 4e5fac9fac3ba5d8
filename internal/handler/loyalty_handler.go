package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/raspapremio/prize-notifier/internal/domain"
)

type LoyaltyService interface {
	SendAccessCode(ctx context.Context, phone string) error
	VerifyAccessCode(ctx context.Context, phone string, code string) (*domain.CustomerLoyalty, error)
}

type LoyaltyHandler struct {
	service LoyaltyService
}

func NewLoyaltyHandler(service LoyaltyService) (*LoyaltyHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("loyalty service is required")
	}
	return &LoyaltyHandler{service: service}, nil
}

func RegisterLoyaltyRoutes(router fiber.Router, service LoyaltyService) error {
	h, err := NewLoyaltyHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1/loyalty")
	v1.Post("/access-code", h.RequestAccessCode)
	v1.Post("/access-code/verify", h.VerifyAccessCode)

	return nil
}

type accessCodeRequest struct {
	CustomerPhone string `json:"customerPhone"`
	Code          string `json:"code,omitempty"`
}

type loyaltyResponse struct {
	CustomerPhone  string     `json:"customerPhone"`
	CustomerName   string     `json:"customerName"`
	Points         int        `json:"points"`
	Tier           string     `json:"tier"`
	TotalPrizesWon int        `json:"totalPrizesWon"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
}

func (h *LoyaltyHandler) RequestAccessCode(c *fiber.Ctx) error {
	var req accessCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	if err := h.service.SendAccessCode(c.UserContext(), req.CustomerPhone); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "Código enviado por WhatsApp",
	})
}

func (h *LoyaltyHandler) VerifyAccessCode(c *fiber.Ctx) error {
	var req accessCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	customer, err := h.service.VerifyAccessCode(c.UserContext(), req.CustomerPhone, req.Code)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"customer": loyaltyResponse{
			CustomerPhone:  customer.CustomerPhone,
			CustomerName:   customer.CustomerName,
			Points:         customer.Points,
			Tier:           customer.Tier.String(),
			TotalPrizesWon: customer.TotalPrizesWon,
			LastLoginAt:    customer.LastLoginAt,
		},
	})
}
