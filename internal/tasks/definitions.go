package tasks

import (
	"time"

	"github.com/rs/zerolog"

	"subsplit_app_echo/internal/billing"
	"subsplit_app_echo/internal/reminders"
)

// Deps are the services task handlers run against.
type Deps struct {
	Generator  *billing.Generator
	Dispatcher *reminders.Dispatcher
	Location   *time.Location
	Logger     zerolog.Logger
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, deps Deps) {
	r.RegisterTask(NewLogInfoTask(deps.Logger))
	r.RegisterTask(NewGenerateChargesTask(deps.Generator, deps.Location))
	r.RegisterTask(NewProcessRemindersTask(deps.Dispatcher))
}
