package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/models"
	"taskhub/internal/store"
)

// Connectivity check for the MongoDB task store. Prints a board summary,
// and with a task id argument dumps that task's event stream.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.MongoDB.URI == "" && cfg.MongoDB.Host == "" {
		log.Fatalf("MongoDB is not configured; set MONGODB_URI or MONGODB_HOST")
	}

	mongoStore, err := store.NewMongoStore(cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoStore.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("=== Task Store Check ===\n\n")

	tasks, err := mongoStore.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		log.Fatalf("Failed to list tasks: %v", err)
	}

	byStatus := make(map[models.TaskStatus]int)
	for _, task := range tasks {
		byStatus[task.Status]++
	}
	fmt.Printf("Total tasks: %d\n", len(tasks))
	for _, status := range []models.TaskStatus{
		models.TaskStatusOpen, models.TaskStatusClaimed, models.TaskStatusInProgress,
		models.TaskStatusCompleted, models.TaskStatusCancelled,
	} {
		fmt.Printf("  %-12s %d\n", status, byStatus[status])
	}
	fmt.Println()

	if len(os.Args) < 2 {
		fmt.Println("Pass a task id to dump its event stream:")
		fmt.Println("  go run cmd/dbcheck/main.go <taskID>")
		return
	}

	taskID := os.Args[1]
	task, err := mongoStore.GetTask(ctx, taskID)
	if err != nil {
		log.Fatalf("Failed to fetch task %s: %v", taskID, err)
	}

	fmt.Printf("=== Task %s ===\n", task.ID)
	fmt.Printf("Type: %s, Status: %s, Seq: %d\n", task.Type, task.Status, task.Seq)
	fmt.Printf("Title: %s\n", task.Title)
	if task.RequiredRole != "" {
		fmt.Printf("Required role: %s\n", task.RequiredRole)
	}
	for _, assignment := range task.Assignments {
		fmt.Printf("  assignment %s user=%s status=%s step=%s\n",
			assignment.ID, assignment.UserID, assignment.Status, assignment.StepKey)
	}
	fmt.Println()

	events, err := mongoStore.GetEvents(ctx, taskID)
	if err != nil {
		log.Fatalf("Failed to fetch events for task %s: %v", taskID, err)
	}
	fmt.Printf("=== Event Stream (%d events) ===\n", len(events))
	for _, event := range events {
		fmt.Printf("  [%d] %s at %s by %s\n",
			event.Seq, event.Type, event.CreatedAt.Format(time.RFC3339), event.ActorUserID)
	}

	if task.Seq != int64(len(events)) {
		fmt.Printf("\nWARNING: task seq %d does not match event count %d\n", task.Seq, len(events))
	}
}
