package store

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists tasks in MongoDB. Each task is a single document with
// its assignments and event history embedded, so a conditional UpdateOne on
// {_id, seq} gives the state change and the event append single-document
// atomicity - both land or neither does.
type MongoStore struct {
	client     *mongo.Client
	database   *mongo.Database
	collection *mongo.Collection
}

// taskDocument is the stored shape: the task plus its embedded event log
type taskDocument struct {
	models.Task `bson:",inline"`
	Events      []models.TaskEvent `bson:"events"`
}

// NewMongoStore connects to MongoDB and prepares the tasks collection
func NewMongoStore(cfg config.MongoDBConfig) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uri := cfg.URI
	if uri == "" {
		if cfg.Username != "" && cfg.Password != "" {
			userInfo := url.UserPassword(cfg.Username, cfg.Password)
			uri = fmt.Sprintf("mongodb://%s@%s:%s/%s?authSource=%s",
				userInfo.String(), cfg.Host, cfg.Port, cfg.Database,
				url.QueryEscape(cfg.AuthSource))
		} else {
			uri = fmt.Sprintf("mongodb://%s:%s/%s", cfg.Host, cfg.Port, cfg.Database)
		}
	}

	log.Printf("[STORE] Connecting to MongoDB at %s:%s/%s", cfg.Host, cfg.Port, cfg.Database)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)
	collection := database.Collection(cfg.Collection)

	// Index for the available-task query and the per-assignee listing
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "requiredRole", Value: 1}}},
		{Keys: bson.D{{Key: "assignments.userId", Value: 1}}},
		{Keys: bson.D{{Key: "creatorId", Value: 1}}},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		// Indexes might already exist, that's okay
		log.Printf("[STORE] Note: MongoDB index creation: %v", err)
	}

	return &MongoStore{
		client:     client,
		database:   database,
		collection: collection,
	}, nil
}

// Close disconnects the underlying MongoDB client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateTask inserts a new task together with its creation event
func (s *MongoStore) CreateTask(ctx context.Context, task *models.Task, event *models.TaskEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	doc := taskDocument{
		Task:   *task,
		Events: []models.TaskEvent{*event},
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("task %s: %w", task.ID, models.ErrConflict)
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID
func (s *MongoStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc taskDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	task := doc.Task
	return &task, nil
}

// ListTasks returns tasks matching the filter, newest first
func (s *MongoStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.CreatorID != "" {
		query["creatorId"] = filter.CreatorID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.AssigneeID != "" {
		query["assignments"] = bson.M{"$elemMatch": bson.M{
			"userId": filter.AssigneeID,
			"status": bson.M{"$ne": models.AssignmentStatusSkipped},
		}}
	}
	return s.findTasks(ctx, query)
}

// ListAvailableTasks returns claimable open tasks for the given role
func (s *MongoStore) ListAvailableTasks(ctx context.Context, role string) ([]*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := bson.M{
		"status": models.TaskStatusOpen,
		"$or": []bson.M{
			{"requiredRole": bson.M{"$exists": false}},
			{"requiredRole": ""},
			{"requiredRole": role},
		},
		"assignments": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"status": bson.M{"$in": []models.AssignmentStatus{
				models.AssignmentStatusPending,
				models.AssignmentStatusInProgress,
			}},
		}}},
	}
	return s.findTasks(ctx, query)
}

func (s *MongoStore) findTasks(ctx context.Context, query bson.M) ([]*models.Task, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"events": 0})
	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	tasks := make([]*models.Task, len(docs))
	for i := range docs {
		task := docs[i].Task
		tasks[i] = &task
	}
	return tasks, nil
}

// UpdateTask writes the task and appends events, conditional on expectedSeq.
// The {_id, seq} filter makes this the compare-and-swap the claim path
// depends on: of N concurrent writers from the same snapshot, one matches.
func (s *MongoStore) UpdateTask(ctx context.Context, task *models.Task, expectedSeq int64, events ...*models.TaskEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	appended := make([]models.TaskEvent, len(events))
	for i, ev := range events {
		appended[i] = *ev
	}

	filter := bson.M{"_id": task.ID, "seq": expectedSeq}
	update := bson.M{
		"$set": bson.M{
			"type":            task.Type,
			"status":          task.Status,
			"title":           task.Title,
			"description":     task.Description,
			"requiredRole":    task.RequiredRole,
			"relatedRecordId": task.RelatedRecordID,
			"metadata":        task.Metadata,
			"assignments":     task.Assignments,
			"seq":             task.Seq,
			"updatedAt":       task.UpdatedAt,
		},
		"$push": bson.M{"events": bson.M{"$each": appended}},
	}

	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.MatchedCount == 0 {
		// Distinguish a missing task from a lost race
		count, err := s.collection.CountDocuments(ctx, bson.M{"_id": task.ID})
		if err != nil {
			return fmt.Errorf("failed to check task existence: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("task %s: %w", task.ID, models.ErrNotFound)
		}
		return fmt.Errorf("task %s not at seq %d: %w", task.ID, expectedSeq, models.ErrConflict)
	}
	return nil
}

// GetEvents returns the task's event history in sequence order
func (s *MongoStore) GetEvents(ctx context.Context, taskID string) ([]models.TaskEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc taskDocument
	opts := options.FindOne().SetProjection(bson.M{"events": 1})
	err := s.collection.FindOne(ctx, bson.M{"_id": taskID}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query task events: %w", err)
	}
	return doc.Events, nil
}
