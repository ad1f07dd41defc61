package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"subsplit_app_echo/internal/app"
	"subsplit_app_echo/internal/config"
	"subsplit_app_echo/internal/logger"
	"subsplit_app_echo/internal/tasks"
)

func main() {
	seed := flag.Bool("seed", false, "create the default recurring tasks if they are missing")
	once := flag.Bool("once", false, "process due tasks once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.Options{
		ServiceName: "subsplit-worker",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
	})

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer a.Close()

	// Initialize Task Registry
	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, tasks.Deps{
		Generator:  a.Generator,
		Dispatcher: a.Dispatcher,
		Location:   a.Location,
		Logger:     log,
	})

	if *seed {
		created, err := tasks.EnsureDefaultTasks(ctx, a.DB, time.Now().In(a.Location))
		if err != nil {
			log.Fatal().Err(err).Msg("seeding default tasks")
		}
		for _, t := range created {
			log.Info().Str("task", t.TaskName).Time("due", t.Due).Msg("default task created")
		}
	}

	runner := tasks.NewRunner(a.DB, registry, log)

	// Run once on start so a fresh deploy does not wait for the first tick
	runner.RunDue(ctx)
	if *once {
		return
	}

	c := cron.New(cron.WithLocation(a.Location), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.Worker.Schedule, func() { runner.RunDue(ctx) }); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Worker.Schedule).Msg("invalid WORKER_SCHEDULE")
	}
	c.Start()
	log.Info().Str("schedule", cfg.Worker.Schedule).Strs("tasks", registry.Names()).Msg("worker started")

	<-ctx.Done()
	log.Info().Msg("shutting down worker")
	<-c.Stop().Done()
}
