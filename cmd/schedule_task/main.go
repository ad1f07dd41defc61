package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	_ "time/tzdata"

	"subsplit_app_echo/internal/config"
	"subsplit_app_echo/internal/logger"
	"subsplit_app_echo/internal/models"
	"subsplit_app_echo/internal/services"
	"subsplit_app_echo/internal/tasks"
)

func main() {
	// defined flags
	taskName := flag.String("task_name", "", "Name of the task (mandatory), e.g. generate_monthly_charges or process_reminders")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task, e.g. {\"month\":6,\"year\":2024}")
	dueStr := flag.String("due", "", "Due date (mandatory, format: 2006-01-02 15:04 in APP_TIMEZONE, or RFC3339)")
	taskType := flag.String("tasktype", "onetime", "Task type (onetime or recurring)")
	recurring := flag.String("recurring", "", "Recurring interval as an RRULE, e.g. FREQ=MONTHLY;BYMONTHDAY=1")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts")

	flag.Parse()

	// Validation
	if *taskName == "" || *dueStr == "" {
		fmt.Println("Usage: schedule_task -task_name <name> -due <YYYY-MM-DD HH:MM> [-arguments <json>] [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.Options{ServiceName: "schedule-task", Level: cfg.App.LogLevel, Format: "console"})

	loc, err := cfg.App.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid APP_TIMEZONE")
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		log.Fatal().Err(err).Msg("invalid JSON arguments")
	}

	due, err := time.Parse(time.RFC3339, *dueStr)
	if err != nil {
		due, err = time.ParseInLocation("2006-01-02 15:04", *dueStr, loc)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid due date, use '2006-01-02 15:04' or RFC3339")
		}
	}

	kind := models.ScheduledTaskType(*taskType)
	if kind != models.ScheduledTaskTypeOneTime && kind != models.ScheduledTaskTypeRecurring {
		log.Fatal().Str("tasktype", *taskType).Msg("tasktype must be onetime or recurring")
	}

	var recurringPtr *string
	if *recurring != "" {
		recurringPtr = recurring
	}
	if kind == models.ScheduledTaskTypeRecurring && recurringPtr == nil {
		log.Fatal().Msg("recurring tasks need -recurring")
	}

	task, err := tasks.BuildScheduledTask(*taskName, args, due, recurringPtr, kind, *maxAttempt)
	if err != nil {
		log.Fatal().Err(err).Msg("building task")
	}

	db, err := services.InitDB(cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	if err := db.WithContext(context.Background()).Create(task).Error; err != nil {
		log.Fatal().Err(err).Msg("failed to create task")
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due.In(loc), task.TaskType)
}
