package reminders

import (
	"bytes"
	"html/template"
	"strings"

	"subsplit_app_echo/internal/models"
)

type emailRow struct {
	Platform string
	Amount   string
}

type emailData struct {
	Brand        string
	Heading      string
	HeadingColor template.CSS
	MemberName   string
	Paragraphs   []string
	Rows         []emailRow
	Total        string
	DueDate      string
}

var emailTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; font-family: sans-serif; background-color: #0f172a; color: #f1f5f9;">
    <div style="max-width: 600px; margin: 20px auto; padding: 20px;">
        <div style="text-align: center; margin-bottom: 30px;">
            <div style="display: inline-block; background: linear-gradient(135deg, #6366f1 0%, #8b5cf6 100%); padding: 12px 24px; border-radius: 12px;">
                <h1 style="margin: 0; color: white; font-size: 24px;">✨ {{.Brand}}</h1>
            </div>
        </div>
        <div style="background: #1e293b; border: 1px solid rgba(255,255,255,0.1); border-radius: 20px; padding: 32px;">
            <div style="margin-bottom: 24px; border-bottom: 1px solid rgba(255,255,255,0.1); padding-bottom: 16px;">
                <h2 style="margin: 0 0 8px 0; color: {{.HeadingColor}}; font-size: 20px;">{{.Heading}}</h2>
                <p style="margin: 0; color: #94a3b8;">Hola <strong>{{.MemberName}}</strong>,</p>
            </div>
            <div style="color: #cbd5e1; font-size: 16px; line-height: 1.6; margin-bottom: 24px;">
                {{range $i, $p := .Paragraphs}}{{if $i}}<br>{{end}}{{$p}}{{end}}
            </div>
            <div style="background: rgba(15,23,42,0.5); border-radius: 12px; padding: 20px; margin-bottom: 24px;">
                <table style="width: 100%; border-collapse: collapse;">
                    <thead>
                        <tr>
                            <th style="text-align: left; padding-bottom: 10px; color: #94a3b8; font-size: 12px;">PLATAFORMA</th>
                            <th style="text-align: right; padding-bottom: 10px; color: #94a3b8; font-size: 12px;">MONTO</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{- range .Rows}}
                        <tr>
                            <td style="padding: 10px 0; color: #94a3b8;">{{.Platform}}</td>
                            <td style="padding: 10px 0; text-align: right; color: white;">{{.Amount}}</td>
                        </tr>
                        {{- end}}
                    </tbody>
                    <tfoot>
                        <tr>
                            <td style="padding-top: 20px; color: white; font-weight: bold; font-size: 14px;">TOTAL A PAGAR:</td>
                            <td style="padding-top: 20px; text-align: right; color: #34d399; font-size: 24px;"><strong>{{.Total}}</strong></td>
                        </tr>
                        <tr>
                            <td colspan="2" style="padding-top: 20px; text-align: center; color: #f59e0b; font-size: 13px; font-weight: bold;">
                                🗓️ Fecha límite de pago: {{.DueDate}}
                            </td>
                        </tr>
                    </tfoot>
                </table>
            </div>
            <p style="font-size: 14px; color: #64748b; text-align: center; margin: 0;">
                Si ya realizaste el pago, por favor ignora este mensaje.
            </p>
        </div>
        <div style="text-align: center; margin-top: 20px; color: #475569; font-size: 12px;">
            Enviado por {{.Brand}} AI
        </div>
    </div>
</body>
</html>
`))

func heading(t models.ReminderType) (string, template.CSS) {
	switch t {
	case models.ReminderPre:
		return "⏰ Pago próximo en 5 días", "#6366f1"
	case models.ReminderDue:
		return "📢 ¡Hoy vence tu pago!", "#f59e0b"
	case models.ReminderOverdue:
		return "⚠️ Pago vencido", "#ef4444"
	default:
		return "📢 Recordatorio de Pago", "#6366f1"
	}
}

// RenderEmail lays out a batch and the composed message as HTML.
// The message is escaped; its line breaks become <br>.
func RenderEmail(b Batch, message string) (string, error) {
	title, color := heading(b.Type)
	data := emailData{
		Brand:        BrandName,
		Heading:      title,
		HeadingColor: color,
		MemberName:   b.Member.Name,
		Paragraphs:   strings.Split(strings.TrimSpace(message), "\n"),
		Total:        FormatCurrency(b.Total()),
		DueDate:      FormatDate(b.EarliestDue()),
	}
	for _, c := range b.Charges {
		data.Rows = append(data.Rows, emailRow{Platform: c.Platform.Name, Amount: FormatCurrency(c.Amount)})
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
