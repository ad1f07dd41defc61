package reminders

import (
	"fmt"
	"strings"

	"subsplit_app_echo/internal/models"
	"subsplit_app_echo/internal/services"
)

// BrandName signs every reminder.
const BrandName = "Strimo"

func situation(t models.ReminderType) string {
	switch t {
	case models.ReminderPre:
		return "Faltan 5 días para el vencimiento"
	case models.ReminderDue:
		return "Vencen hoy"
	case models.ReminderOverdue:
		return "Están atrasadas"
	default:
		return "Recordatorio general"
	}
}

// BuildPrompt asks the text model for a short greeting about the pending platforms.
// Amounts are left out on purpose: the email layout shows them.
func BuildPrompt(memberName string, platforms []string, t models.ReminderType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Actúa como el asistente de cobros de %q.\n", BrandName)
	fmt.Fprintf(&b, "Escribe un mensaje CORTO y amable para %s sobre sus suscripciones pendientes: %s.\n",
		memberName, strings.Join(platforms, ", "))
	b.WriteString("No incluyas los montos individuales ni el total en este texto, solo un saludo y un recordatorio de que tiene estas cuentas pendientes.\n")
	fmt.Fprintf(&b, "Situación: %s.\n", situation(t))
	b.WriteString(`Sé profesional pero muy cercano. Dame el JSON con "subject" y "message".`)
	return b.String()
}

// FallbackMessage is sent when the text model is unavailable.
func FallbackMessage(memberName string, platforms []string, t models.ReminderType) services.ComposedMessage {
	subject := fmt.Sprintf("%s - Recordatorio de pago", BrandName)
	switch t {
	case models.ReminderPre:
		subject = fmt.Sprintf("%s - Tu pago vence en 5 días", BrandName)
	case models.ReminderDue:
		subject = fmt.Sprintf("%s - Tu pago vence hoy", BrandName)
	case models.ReminderOverdue:
		subject = fmt.Sprintf("%s - Tienes un pago atrasado", BrandName)
	}

	msg := fmt.Sprintf("Hola %s,\nTe recordamos que tienes pendiente el pago de: %s.\n%s.",
		memberName, strings.Join(platforms, ", "), situation(t))
	return services.ComposedMessage{Subject: subject, Message: msg}
}
