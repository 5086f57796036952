// Package mongo implements a durable taskstore.Store backed by MongoDB,
// storing one document per task in a collection indexed on context_id, as
// called for by the domain-stack expansion in SPEC_FULL.md (the teacher
// carries go.mongodb.org/mongo-driver/v2 but does not otherwise exercise
// it for task persistence).
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/agentfleet/orchestrator/task"
	"github.com/agentfleet/orchestrator/taskstore"
)

// Store is a taskstore.Store backed by a MongoDB collection.
type Store struct {
	coll *mongo.Collection
}

// New wraps an existing collection. EnsureIndexes should be called once at
// startup to create the context_id index.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the context_id index used by List filtering. Safe
// to call repeatedly; MongoDB treats an identical CreateIndex as a no-op.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "context_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("taskstore/mongo: ensure index: %w", err)
	}
	return nil
}

type doc struct {
	ID        string             `bson:"_id"`
	ContextID string             `bson:"context_id"`
	Status    task.StatusUpdate  `bson:"status"`
	Artifacts []*task.Artifact   `bson:"artifacts"`
	History   []task.Message     `bson:"history"`
}

func toDoc(t *task.Task) doc {
	return doc{
		ID:        string(t.ID),
		ContextID: string(t.ContextID),
		Status:    t.Status,
		Artifacts: t.Artifacts,
		History:   t.History,
	}
}

func fromDoc(d doc) *task.Task {
	return &task.Task{
		ID:        task.ID(d.ID),
		ContextID: task.ContextID(d.ContextID),
		Status:    d.Status,
		Artifacts: d.Artifacts,
		History:   d.History,
	}
}

// Save persists t, replacing any prior document with the same ID.
func (s *Store) Save(ctx context.Context, t *task.Task) error {
	d := toDoc(t)
	opts := options.Replace().SetUpsert(true)
	_, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: d.ID}}, d, opts)
	if err != nil {
		return fmt.Errorf("taskstore/mongo: save task %s: %w", t.ID, err)
	}
	return nil
}

// Load returns the task for id, or taskstore.ErrNotFound if absent.
func (s *Store) Load(ctx context.Context, id task.ID) (*task.Task, error) {
	var d doc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: string(id)}}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, taskstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("taskstore/mongo: load task %s: %w", id, err)
	}
	return fromDoc(d), nil
}

// Delete removes the document for id. A missing id is a no-op.
func (s *Store) Delete(ctx context.Context, id task.ID) error {
	_, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: string(id)}})
	if err != nil {
		return fmt.Errorf("taskstore/mongo: delete task %s: %w", id, err)
	}
	return nil
}

// List returns a page of tasks matching filter, using a skip/limit cursor
// encoded as the page token.
func (s *Store) List(ctx context.Context, filter taskstore.Filter) (taskstore.Page, error) {
	query := bson.D{}
	if filter.ContextID != "" {
		query = append(query, bson.E{Key: "context_id", Value: string(filter.ContextID)})
	}
	if filter.HasStatus {
		query = append(query, bson.E{Key: "status.state", Value: string(filter.Status)})
	}

	skip := int64(0)
	if filter.PageToken != "" {
		fmt.Sscanf(filter.PageToken, "%d", &skip) //nolint:errcheck // best-effort cursor parse; malformed token falls back to 0
	}
	limit := int64(filter.PageSize)
	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(skip)
	if limit > 0 {
		findOpts = findOpts.SetLimit(limit + 1) // fetch one extra to detect a next page
	}

	cursor, err := s.coll.Find(ctx, query, findOpts)
	if err != nil {
		return taskstore.Page{}, fmt.Errorf("taskstore/mongo: list: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []doc
	if err := cursor.All(ctx, &docs); err != nil {
		return taskstore.Page{}, fmt.Errorf("taskstore/mongo: decode list: %w", err)
	}

	page := taskstore.Page{}
	hasMore := limit > 0 && int64(len(docs)) > limit
	if hasMore {
		docs = docs[:limit]
	}
	for _, d := range docs {
		page.Tasks = append(page.Tasks, fromDoc(d))
	}
	if hasMore {
		page.NextPageToken = fmt.Sprintf("%d", skip+limit)
	}
	return page, nil
}
