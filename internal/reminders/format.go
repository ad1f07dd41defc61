package reminders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var locale = language.MustParse("es-CO")

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatCurrency renders an amount as whole Colombian pesos, e.g. "$ 10.000".
func FormatCurrency(amount decimal.Decimal) string {
	p := message.NewPrinter(locale)
	return p.Sprintf("$ %d", amount.Round(0).IntPart())
}

// FormatDate renders a calendar date in long Spanish form, e.g. "05 de marzo de 2024".
func FormatDate(t time.Time) string {
	y, m, d := t.Date()
	return fmt.Sprintf("%02d de %s de %d", d, monthNames[m-1], y)
}
