package message

import (
	"fmt"
	"strings"

	"github.com/raspapremio/prize-notifier/internal/domain"
)

const (
	countryCode       = "55"
	minNationalDigits = 10
	maxNationalDigits = 11
	whatsAppJIDSuffix = "@s.whatsapp.net"
)

// NormalizePhone returns the gateway form of a Brazilian phone number:
// "55" followed by a 10 or 11 digit national number.
func NormalizePhone(raw string) (string, error) {
	digits := onlyDigits(raw)
	national := strings.TrimPrefix(digits, countryCode)

	if len(national) < minNationalDigits || len(national) > maxNationalDigits {
		return "", fmt.Errorf("%w: invalid phone %q (need %d or %d digits after country code, got %d)",
			domain.ErrValidation, raw, minNationalDigits, maxNationalDigits, len(national))
	}

	return countryCode + national, nil
}

// PhoneFromJID normalizes the sender of an inbound WhatsApp message.
func PhoneFromJID(jid string) (string, error) {
	return NormalizePhone(strings.TrimSuffix(strings.TrimSpace(jid), whatsAppJIDSuffix))
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
