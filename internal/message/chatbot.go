package message

import (
	"fmt"
	"strings"

	"github.com/raspapremio/prize-notifier/internal/domain"
)

// Command is a chatbot intent recognised in an inbound message.
type Command string

const (
	CommandBalance      Command = "balance"
	CommandHistory      Command = "history"
	CommandAchievements Command = "achievements"
	CommandHelp         Command = "help"
	CommandGreeting     Command = "greeting"
)

// HistoryLimit bounds the registrations listed by the history command.
const HistoryLimit = 5

var commandKeywords = []struct {
	command  Command
	keywords []string
}{
	{command: CommandBalance, keywords: []string{"pontos", "saldo"}},
	{command: CommandHistory, keywords: []string{"premios", "prêmios", "historico", "histórico"}},
	{command: CommandAchievements, keywords: []string{"conquistas", "badges", "badge"}},
	{command: CommandHelp, keywords: []string{"ajuda", "help", "menu"}},
}

// ParseCommand matches keywords as case-insensitive substrings, first match wins.
func ParseCommand(text string) Command {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, entry := range commandKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.command
			}
		}
	}
	return CommandGreeting
}

func BalanceReply(loyalty *domain.CustomerLoyalty) string {
	if loyalty == nil {
		return "❌ Você ainda não está no programa de fidelidade. Ganhe seu primeiro prêmio para participar!"
	}

	return fmt.Sprintf("📊 Seu saldo de pontos:\n\n⭐ Pontos: %d\n🏆 Tier: %s\n🎁 Prêmios ganhos: %d\n\nContinue participando para ganhar mais pontos!",
		loyalty.Points, strings.ToUpper(loyalty.Tier.String()), loyalty.TotalPrizesWon)
}

func HistoryReply(registrations []domain.Registration) string {
	if len(registrations) == 0 {
		return "❌ Você ainda não ganhou nenhum prêmio. Participe para começar a ganhar!"
	}

	var b strings.Builder
	b.WriteString("🎁 Seus últimos prêmios:\n\n")
	for i, reg := range registrations {
		status := "⏳ Pendente"
		if reg.Redeemed {
			status = "✅ Retirado"
		}
		fmt.Fprintf(&b, "%d. %s\n   Código: %s\n   Status: %s\n\n", i+1, reg.PrizeNameOrDefault(), reg.SerialCode, status)
	}
	return b.String()
}

func AchievementsReply(unlocked []domain.CustomerAchievement) string {
	if len(unlocked) == 0 {
		return "🏆 Você ainda não possui conquistas. Continue participando para desbloquear badges!"
	}

	var b strings.Builder
	b.WriteString("🏆 Suas conquistas:\n\n")
	for _, ca := range unlocked {
		if ca.Achievement == nil {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n   %s\n   Desbloqueado: %s\n\n",
			ca.Achievement.Icon, ca.Achievement.Name, ca.Achievement.Description, ca.UnlockedAt.Format("02/01/2006"))
	}
	return b.String()
}

func HelpReply() string {
	return "🤖 Comandos disponíveis:\n\n" +
		"📊 *PONTOS* - Ver seu saldo de pontos\n" +
		"🎁 *PREMIOS* - Ver histórico de prêmios\n" +
		"🏆 *CONQUISTAS* - Ver suas conquistas\n" +
		"❓ *AJUDA* - Ver esta mensagem\n\n" +
		"Digite qualquer comando para começar!"
}

func GreetingReply() string {
	return "Olá! 👋\n\nSou o assistente do programa de fidelidade.\n\nDigite *AJUDA* para ver os comandos disponíveis."
}
