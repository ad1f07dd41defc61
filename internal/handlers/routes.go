package handlers

import (
	"github.com/labstack/echo/v4"
)

// Handlers groups every HTTP handler the server exposes.
type Handlers struct {
	Auth      *AuthHandler
	Dashboard *DashboardHandler
	Members   *MemberHandler
	Platforms *PlatformHandler
	Charges   *ChargeHandler
	Reminders *ReminderHandler
}

// Register mounts the API under /api and the reminder function under
// /functions. Both require a bearer token.
func Register(e *echo.Echo, h Handlers, requireAuth echo.MiddlewareFunc) {
	fn := e.Group("/functions", requireAuth)
	fn.POST("/process-reminders", h.Reminders.ProcessReminders)

	api := e.Group("/api", requireAuth)
	api.GET("/me", h.Auth.Me)
	api.GET("/dashboard", h.Dashboard.Summary)

	api.GET("/members", h.Members.ListMembers)
	api.POST("/members", h.Members.StoreMember)
	api.GET("/members/:id", h.Members.GetMember)
	api.PUT("/members/:id", h.Members.UpdateMember)
	api.DELETE("/members/:id", h.Members.DeleteMember)
	api.GET("/members/:id/pending", h.Members.PendingSummary)

	api.GET("/platforms", h.Platforms.ListPlatforms)
	api.POST("/platforms", h.Platforms.StorePlatform)
	api.GET("/platforms/:id", h.Platforms.GetPlatform)
	api.PUT("/platforms/:id", h.Platforms.UpdatePlatform)
	api.DELETE("/platforms/:id", h.Platforms.DeletePlatform)
	api.GET("/platforms/:id/subscriptions", h.Platforms.ListSubscriptions)
	api.POST("/platforms/:id/subscriptions", h.Platforms.AddSubscription)
	api.PUT("/platforms/:id/subscriptions", h.Platforms.SetSubscriptions)
	api.DELETE("/platforms/:id/subscriptions/:memberId", h.Platforms.RemoveSubscription)
	api.PUT("/platforms/:id/rotation", h.Platforms.ReorderRotation)
	api.POST("/platforms/:id/rotation/move", h.Platforms.MoveInRotation)

	api.POST("/charges/generate", h.Charges.GenerateCharges)
	api.GET("/charges", h.Charges.ListCharges)
	api.GET("/charges/:id", h.Charges.GetCharge)
	api.POST("/charges/:id/pay", h.Charges.MarkPaid)
	api.DELETE("/charges/:id", h.Charges.DeleteCharge)
	api.GET("/charges/:id/whatsapp-link", h.Charges.WhatsAppLink)
	api.POST("/charges/:id/whatsapp", h.Charges.SendWhatsApp)

	api.GET("/payment-history", h.Charges.ListPaymentHistory)
}
