package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/raspapremio/prize-notifier/internal/service"
)

type ReceiptService interface {
	Generate(ctx context.Context, registrationID string) (*service.ReceiptResult, error)
	Render(ctx context.Context, w io.Writer, code string) error
}

type ReceiptHandler struct {
	service ReceiptService
}

func NewReceiptHandler(service ReceiptService) (*ReceiptHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("receipt service is required")
	}
	return &ReceiptHandler{service: service}, nil
}

func RegisterReceiptRoutes(router fiber.Router, service ReceiptService) error {
	h, err := NewReceiptHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1/receipts")
	v1.Post("/", h.GenerateReceipt)
	v1.Get("/:code", h.ShowReceipt)

	return nil
}

type generateReceiptRequest struct {
	RegistrationID string `json:"registrationId"`
}

type receiptResponse struct {
	Success     bool      `json:"success"`
	ReceiptURL  string    `json:"receiptUrl"`
	QRCode      string    `json:"qrCode"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// GenerateReceipt answers 201 for a new receipt and 200 when one existed.
func (h *ReceiptHandler) GenerateReceipt(c *fiber.Ctx) error {
	var req generateReceiptRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	result, err := h.service.Generate(c.UserContext(), req.RegistrationID)
	if err != nil {
		return toHTTPError(err)
	}

	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(receiptResponse{
		Success:     true,
		ReceiptURL:  result.Receipt.ReceiptURL,
		QRCode:      result.Receipt.VerificationCode,
		GeneratedAt: result.Receipt.GeneratedAt,
	})
}

func (h *ReceiptHandler) ShowReceipt(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.service.Render(c.UserContext(), &buf, c.Params("code")); err != nil {
		return toHTTPError(err)
	}

	c.Type("html", "utf-8")
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}
