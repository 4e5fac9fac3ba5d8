package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/raspapremio/prize-notifier/internal/service"
)

type QueueSweeper interface {
	Sweep(ctx context.Context) (service.SweepSummary, error)
}

type ReminderRunner interface {
	Run(ctx context.Context) (service.ReminderSummary, error)
}

// JobHandler exposes the batch jobs so an external cron can trigger them.
type JobHandler struct {
	sweeper   QueueSweeper
	reminders ReminderRunner
}

func NewJobHandler(sweeper QueueSweeper, reminders ReminderRunner) (*JobHandler, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("queue sweeper is required")
	}
	if reminders == nil {
		return nil, fmt.Errorf("reminder runner is required")
	}
	return &JobHandler{sweeper: sweeper, reminders: reminders}, nil
}

func RegisterJobRoutes(router fiber.Router, sweeper QueueSweeper, reminders ReminderRunner) error {
	h, err := NewJobHandler(sweeper, reminders)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1/jobs")
	v1.Post("/process-notifications", h.ProcessNotifications)
	v1.Post("/reminders", h.RunReminders)

	return nil
}

type processNotificationsResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Processed    int    `json:"processed"`
	SuccessCount int    `json:"successCount"`
	FailureCount int    `json:"failureCount"`
}

type reminderStats struct {
	Expired           int64 `json:"expired"`
	ThreeDayReminders int   `json:"threeDayReminders"`
	SevenDayReminders int   `json:"sevenDayReminders"`
	Truncated         bool  `json:"truncated,omitempty"`
}

type remindersResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Stats   reminderStats `json:"stats"`
}

func (h *JobHandler) ProcessNotifications(c *fiber.Ctx) error {
	summary, err := h.sweeper.Sweep(c.UserContext())
	if err != nil {
		return err
	}

	msg := "Notificações processadas"
	if summary.Skipped {
		msg = "Processamento já em andamento"
	}

	return c.Status(fiber.StatusOK).JSON(processNotificationsResponse{
		Success:      true,
		Message:      msg,
		Processed:    summary.Processed,
		SuccessCount: summary.Succeeded,
		FailureCount: summary.Failed,
	})
}

func (h *JobHandler) RunReminders(c *fiber.Ctx) error {
	summary, err := h.reminders.Run(c.UserContext())
	if err != nil {
		return err
	}

	msg := "Lembretes processados com sucesso"
	if summary.Skipped {
		msg = "Lembretes já em processamento"
	}

	return c.Status(fiber.StatusOK).JSON(remindersResponse{
		Success: true,
		Message: msg,
		Stats: reminderStats{
			Expired:           summary.Expired,
			ThreeDayReminders: summary.ThreeDayReminders,
			SevenDayReminders: summary.SevenDayReminders,
			Truncated:         summary.Truncated,
		},
	})
}
