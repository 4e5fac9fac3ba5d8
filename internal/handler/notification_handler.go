package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/message"
	"github.com/raspapremio/prize-notifier/internal/provider"
	"github.com/raspapremio/prize-notifier/internal/service"
)

type PrizeSender interface {
	SendPrize(ctx context.Context, kind string, phone string, payload message.Payload) (*provider.SendResult, error)
}

type AchievementChecker interface {
	Check(ctx context.Context, phone string) ([]domain.Achievement, error)
}

// NotificationHandler serves the direct (non-queued) sends. Failures are
// returned to the caller, never retried through the queue.
type NotificationHandler struct {
	sender       PrizeSender
	achievements AchievementChecker
}

func NewNotificationHandler(sender PrizeSender, achievements AchievementChecker) (*NotificationHandler, error) {
	if sender == nil {
		return nil, fmt.Errorf("prize sender is required")
	}
	if achievements == nil {
		return nil, fmt.Errorf("achievement checker is required")
	}
	return &NotificationHandler{sender: sender, achievements: achievements}, nil
}

func RegisterNotificationRoutes(router fiber.Router, sender PrizeSender, achievements AchievementChecker) error {
	h, err := NewNotificationHandler(sender, achievements)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications/whatsapp", h.SendWhatsApp)
	v1.Post("/achievements/check", h.CheckAchievements)

	return nil
}

type sendWhatsAppRequest struct {
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	PrizeName     string `json:"prizeName"`
	SerialCode    string `json:"serialCode"`
}

type sendWhatsAppResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Phone   string `json:"phone"`
}

type checkAchievementsRequest struct {
	CustomerPhone string `json:"customerPhone"`
}

type achievementResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Icon             string `json:"icon"`
	RequirementType  string `json:"requirementType"`
	RequirementValue int    `json:"requirementValue"`
}

type checkAchievementsResponse struct {
	Success         bool                  `json:"success"`
	NewAchievements []achievementResponse `json:"newAchievements"`
	Count           int                   `json:"count"`
}

func (h *NotificationHandler) SendWhatsApp(c *fiber.Ctx) error {
	var req sendWhatsAppRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	payload := message.Payload{
		CustomerName: strings.TrimSpace(req.CustomerName),
		PrizeName:    strings.TrimSpace(req.PrizeName),
		SerialCode:   strings.TrimSpace(req.SerialCode),
	}
	if payload.CustomerName == "" {
		return toHTTPError(fmt.Errorf("%w: customerName is required", domain.ErrValidation))
	}

	phone, err := message.NormalizePhone(req.CustomerPhone)
	if err != nil {
		return toHTTPError(err)
	}

	result, err := h.sender.SendPrize(c.UserContext(), service.KindPrizeValidated, phone, payload)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(sendWhatsAppResponse{
		Success: true,
		Message: "WhatsApp enviado com sucesso",
		Status:  result.StatusCode,
		Phone:   phone,
	})
}

func (h *NotificationHandler) CheckAchievements(c *fiber.Ctx) error {
	var req checkAchievementsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	if strings.TrimSpace(req.CustomerPhone) == "" {
		return toHTTPError(fmt.Errorf("%w: customerPhone is required", domain.ErrValidation))
	}

	unlocked, err := h.achievements.Check(c.UserContext(), req.CustomerPhone)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]achievementResponse, 0, len(unlocked))
	for _, a := range unlocked {
		items = append(items, achievementResponse{
			ID:               a.ID,
			Name:             a.Name,
			Description:      a.Description,
			Icon:             a.Icon,
			RequirementType:  a.RequirementType.String(),
			RequirementValue: a.RequirementValue,
		})
	}

	return c.Status(fiber.StatusOK).JSON(checkAchievementsResponse{
		Success:         true,
		NewAchievements: items,
		Count:           len(items),
	})
}
