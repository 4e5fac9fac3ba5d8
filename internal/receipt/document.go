// Package receipt renders the HTML proof a customer shows at the store.
package receipt

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/observability"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 200

// Brazil has had no daylight saving since 2019.
var brasilia = time.FixedZone("BRT", -3*60*60)

type Document struct {
	Details          domain.ReceiptDetails
	VerificationCode string
	GeneratedAt      time.Time
}

type view struct {
	PrizeName        string
	PrizeValue       string
	CustomerName     string
	CustomerPhone    string
	SerialCode       string
	RegisteredAt     string
	Redeemed         bool
	RedeemedAt       string
	AttendantName    string
	VerificationCode string
	QRCode           template.URL
	GeneratedAt      string
}

// Render writes doc as a standalone HTML page with the verification code
// embedded as a PNG QR code.
func Render(w io.Writer, doc Document) error {
	if strings.TrimSpace(doc.VerificationCode) == "" {
		return fmt.Errorf("%w: verification code is required", domain.ErrValidation)
	}

	png, err := qrcode.Encode(doc.VerificationCode, qrcode.Medium, qrSize)
	if err != nil {
		return fmt.Errorf("failed to encode qr code: %w", err)
	}

	d := doc.Details
	v := view{
		PrizeName:        d.PrizeNameOrDefault(),
		PrizeValue:       FormatBRL(d.PrizeValue),
		CustomerName:     d.CustomerName,
		CustomerPhone:    observability.MaskPhone(d.CustomerPhone),
		SerialCode:       d.SerialCode,
		RegisteredAt:     formatTime(d.RegisteredAt),
		Redeemed:         d.Redeemed(),
		VerificationCode: doc.VerificationCode,
		QRCode:           template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)),
		GeneratedAt:      formatTime(doc.GeneratedAt),
	}
	if d.RedeemedAt != nil {
		v.RedeemedAt = formatTime(*d.RedeemedAt)
	}
	if d.AttendantName != nil {
		v.AttendantName = *d.AttendantName
	}

	if err := page.Execute(w, v); err != nil {
		return fmt.Errorf("failed to render receipt: %w", err)
	}
	return nil
}

// FormatBRL formats value the Brazilian way, e.g. "R$ 1234,50".
func FormatBRL(value float64) string {
	return "R$ " + strings.Replace(fmt.Sprintf("%.2f", value), ".", ",", 1)
}

func formatTime(t time.Time) string {
	return t.In(brasilia).Format("02/01/2006 15:04")
}

var page = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
  <meta charset="UTF-8">
  <title>Comprovante de Prêmio</title>
  <style>
    body { font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
    .receipt { background: #fff; border-radius: 10px; padding: 30px; }
    .header { text-align: center; border-bottom: 2px solid #4CAF50; padding-bottom: 20px; }
    .badge { background: #4CAF50; color: #fff; padding: 10px 20px; border-radius: 20px; display: inline-block; }
    .prize { background: #f0f0f0; padding: 15px; margin: 20px 0; text-align: center; }
    .prize-value { font-size: 28px; font-weight: bold; color: #FF9800; }
    .row { display: flex; justify-content: space-between; padding: 10px 0; border-bottom: 1px solid #eee; }
    .qr, .footer { text-align: center; margin-top: 20px; color: #666; }
  </style>
</head>
<body>
  <div class="receipt">
    <div class="header">
      <h1>Comprovante de Prêmio</h1>
      <p>Raspadinha da Sorte</p>
      <div class="badge">{{if .Redeemed}}✓ RETIRADO{{else}}✓ VALIDADO{{end}}</div>
    </div>
    <div class="prize">
      <div><strong>{{.PrizeName}}</strong></div>
      <div class="prize-value">{{.PrizeValue}}</div>
    </div>
    <div class="row"><span>Cliente:</span><span>{{.CustomerName}}</span></div>
    <div class="row"><span>Telefone:</span><span>{{.CustomerPhone}}</span></div>
    <div class="row"><span>Código Serial:</span><span>{{.SerialCode}}</span></div>
    <div class="row"><span>Data de Registro:</span><span>{{.RegisteredAt}}</span></div>
    {{- if .Redeemed}}
    <div class="row"><span>Data de Retirada:</span><span>{{.RedeemedAt}}</span></div>
    <div class="row"><span>Atendente:</span><span>{{.AttendantName}}</span></div>
    {{- end}}
    <div class="qr">
      <img src="{{.QRCode}}" alt="QR Code de Verificação" width="200" height="200">
      <p>Código de Verificação<br><strong>{{.VerificationCode}}</strong></p>
    </div>
    <div class="footer">
      <p>Este comprovante é válido para retirada do prêmio.</p>
      <p>Apresente este comprovante na loja.</p>
      <p>Gerado em {{.GeneratedAt}}</p>
    </div>
  </div>
</body>
</html>
`))
