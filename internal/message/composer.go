package message

import (
	"fmt"
	"strings"

	"github.com/raspapremio/prize-notifier/internal/domain"
)

const (
	prizeValidatedTemplate = "🎉 Parabéns, %s!\n\n" +
		"Seu prêmio foi validado com sucesso! ✅\n\n" +
		"📦 Prêmio: %s\n" +
		"🎫 Código: %s\n\n" +
		"Você já pode retirar seu prêmio na loja!\n\n" +
		"Obrigado por participar! 🎁"

	achievementsPrizeLabel = "Conquistas Desbloqueadas"
	accessCodeHint         = "Use este código para acessar seus pontos"
)

// Payload carries the three fields interpolated into the prize template.
type Payload struct {
	CustomerName string
	PrizeName    string
	SerialCode   string
}

// Compose renders the congratulatory message. Fields are inserted literally.
func Compose(p Payload) string {
	return fmt.Sprintf(prizeValidatedTemplate, p.CustomerName, p.PrizeName, p.SerialCode)
}

// ReminderPayload builds the payload for an unredeemed-prize reminder.
func ReminderPayload(reg domain.Registration) Payload {
	return Payload{
		CustomerName: reg.CustomerName,
		PrizeName:    reg.PrizeNameOrDefault(),
		SerialCode:   reg.SerialCode,
	}
}

// AccessCodePayload puts a loyalty access code in the prize slot of the template.
func AccessCodePayload(customerName string, code string) Payload {
	return Payload{
		CustomerName: customerName,
		PrizeName:    "Código de acesso: " + code,
		SerialCode:   accessCodeHint,
	}
}

// AchievementPayload lists newly unlocked achievements in the serial slot.
func AchievementPayload(customerName string, unlocked []domain.Achievement) Payload {
	items := make([]string, 0, len(unlocked))
	for _, a := range unlocked {
		items = append(items, fmt.Sprintf("%s %s\n%s", a.Icon, a.Name, a.Description))
	}

	return Payload{
		CustomerName: customerName,
		PrizeName:    achievementsPrizeLabel,
		SerialCode:   "🎉 Nova(s) conquista(s) desbloqueada(s)!\n\n" + strings.Join(items, "\n\n"),
	}
}
