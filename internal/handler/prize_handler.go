package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/service"
)

type PrizeService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.RegisterResult, error)
	Redeem(ctx context.Context, in service.RedeemInput) (*service.RedeemResult, error)
}

type PrizeHandler struct {
	service PrizeService
}

func NewPrizeHandler(service PrizeService) (*PrizeHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("prize service is required")
	}
	return &PrizeHandler{service: service}, nil
}

func RegisterPrizeRoutes(router fiber.Router, service PrizeService) error {
	h, err := NewPrizeHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/registrations", h.RegisterCard)
	v1.Post("/redemptions", h.RedeemCard)

	return nil
}

type registerCardRequest struct {
	SerialCode    string  `json:"serialCode"`
	CustomerName  string  `json:"customerName"`
	CustomerPhone string  `json:"customerPhone"`
	CustomerEmail *string `json:"customerEmail,omitempty"`
}

type redeemCardRequest struct {
	SerialCode    string  `json:"serialCode"`
	AttendantName string  `json:"attendantName"`
	Notes         *string `json:"notes,omitempty"`
}

type registrationResponse struct {
	ID            string    `json:"id"`
	ScratchCardID string    `json:"scratchCardId"`
	SerialCode    string    `json:"serialCode,omitempty"`
	PrizeName     *string   `json:"prizeName,omitempty"`
	CustomerName  string    `json:"customerName"`
	CustomerPhone string    `json:"customerPhone"`
	CustomerEmail *string   `json:"customerEmail,omitempty"`
	RegisteredAt  time.Time `json:"registeredAt"`
	Enqueued      []string  `json:"enqueued"`
}

type redemptionResponse struct {
	ID             string    `json:"id"`
	RegistrationID string    `json:"registrationId"`
	AttendantName  string    `json:"attendantName"`
	Notes          *string   `json:"notes,omitempty"`
	RedeemedAt     time.Time `json:"redeemedAt"`
	Enqueued       []string  `json:"enqueued"`
}

func (h *PrizeHandler) RegisterCard(c *fiber.Ctx) error {
	var req registerCardRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	result, err := h.service.Register(c.UserContext(), service.RegisterInput{
		SerialCode:    req.SerialCode,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return toHTTPError(err)
	}

	reg := result.Registration
	resp := registrationResponse{
		ID:            reg.ID,
		ScratchCardID: reg.ScratchCardID,
		CustomerName:  reg.CustomerName,
		CustomerPhone: reg.CustomerPhone,
		CustomerEmail: reg.CustomerEmail,
		RegisteredAt:  reg.RegisteredAt,
		Enqueued:      entryIDs(result.Enqueued),
	}
	if result.Card != nil {
		resp.SerialCode = result.Card.SerialCode
		resp.PrizeName = result.Card.PrizeName
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *PrizeHandler) RedeemCard(c *fiber.Ctx) error {
	var req redeemCardRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	result, err := h.service.Redeem(c.UserContext(), service.RedeemInput{
		SerialCode:    req.SerialCode,
		AttendantName: req.AttendantName,
		Notes:         req.Notes,
	})
	if err != nil {
		return toHTTPError(err)
	}

	resp := redemptionResponse{
		ID:            result.Redemption.ID,
		AttendantName: result.Redemption.AttendantName,
		Notes:         result.Redemption.Notes,
		RedeemedAt:    result.Redemption.RedeemedAt,
		Enqueued:      entryIDs(result.Enqueued),
	}
	if result.Registration != nil {
		resp.RegistrationID = result.Registration.ID
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func entryIDs(entries []*domain.QueueEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	return ids
}
