package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"plotledger_app/internal/config"
	"plotledger_app/internal/logger"
	"plotledger_app/internal/models"
	"plotledger_app/internal/services"
	"plotledger_app/internal/tasks"
)

func main() {
	// defined flags
	taskName := flag.String("task_name", "", "Name of the task (mandatory)")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task")
	dueStr := flag.String("due", "", "Due date (optional, default: now, format: 2006-01-02 15:04 or RFC3339)")
	taskType := flag.String("tasktype", "onetime", "Task type (optional, default: onetime)")
	recurring := flag.String("recurring", "", "Recurring RRULE, e.g. FREQ=HOURLY;INTERVAL=1 (optional)")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts (optional, default: 3)")

	flag.Parse()

	if *taskName == "" {
		fmt.Println("Usage: schedule_task -task_name <name> [-arguments <json_args>] [-due <YYYY-MM-DD HH:MM>] [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New("schedule_task", cfg.LogLevel)

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		log.WithError(err).Fatal("Invalid JSON arguments")
	}

	due := time.Now()
	if *dueStr != "" {
		due, err = parseDue(*dueStr)
		if err != nil {
			log.WithError(err).Fatal("Invalid due date format. Use '2006-01-02 15:04' (Local) or RFC3339")
		}
	}

	kind := models.ScheduledTaskType(*taskType)
	if kind != models.ScheduledTaskTypeOneTime && kind != models.ScheduledTaskTypeRecurring {
		log.Fatalf("Unknown task type %q", *taskType)
	}

	var recurringPtr *string
	if *recurring != "" {
		recurringPtr = recurring
	}
	if kind == models.ScheduledTaskTypeRecurring && recurringPtr == nil {
		log.Fatal("Recurring tasks need -recurring")
	}

	task, err := tasks.BuildScheduledTask(*taskName, args, due, recurringPtr, kind, *maxAttempt)
	if err != nil {
		log.WithError(err).Fatal("Failed to build task")
	}

	db, err := services.InitDB(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect DB")
	}

	if err := db.Create(task).Error; err != nil {
		log.WithError(err).Fatal("Failed to create task")
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
}

func parseDue(value string) (time.Time, error) {
	due, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return due, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", value, time.Local)
}
