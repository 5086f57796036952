// Package redis implements a durable taskstore.Store backed by Redis.
// Save and Delete write the task key and the ID index together in one
// MULTI/EXEC transaction; no WATCH is used, so concurrent Save calls for
// the same task ID are last-writer-wins.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/agentfleet/orchestrator/task"
	"github.com/agentfleet/orchestrator/taskstore"
)

const keyPrefix = "agentfleet:task:"

// Store is a taskstore.Store backed by a Redis client. Each task is stored
// as a single JSON-encoded value under "agentfleet:task:<id>"; a set
// "agentfleet:tasks" tracks known IDs for List.
type Store struct {
	client redis.UniversalClient
	codec  Codec
}

// New wraps an existing Redis client. The caller owns the client's
// lifecycle (including Close).
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func key(id task.ID) string { return keyPrefix + string(id) }

const indexKey = "agentfleet:tasks"

// wireTask is the JSON-serializable projection of task.Task used on the
// wire. task.Message/task.Artifact carry model.Part interface values that
// are not directly JSON round-trippable without a registered codec; the
// store persists them via a provider-supplied encode/decode pair so this
// package stays decoupled from the model package's concrete part types.
type wireTask struct {
	ID        task.ID
	ContextID task.ContextID
	Status    task.StatusUpdate
	Payload   json.RawMessage
}

// Codec encodes/decodes the artifact and history payload of a Task. The
// default codec round-trips through encoding/json's reflection-based
// marshaling, which is sufficient for the concrete model.Part
// implementations declared in this module; callers with custom Part types
// may supply their own Codec.
type Codec interface {
	Encode(t *task.Task) (json.RawMessage, error)
	Decode(payload json.RawMessage, t *task.Task) error
}

type jsonCodec struct{}

type payloadShape struct {
	Artifacts []*task.Artifact
	History   []task.Message
}

func (jsonCodec) Encode(t *task.Task) (json.RawMessage, error) {
	return json.Marshal(payloadShape{Artifacts: t.Artifacts, History: t.History})
}

func (jsonCodec) Decode(payload json.RawMessage, t *task.Task) error {
	var shape payloadShape
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, &shape); err != nil {
		return err
	}
	t.Artifacts = shape.Artifacts
	t.History = shape.History
	return nil
}

// WithCodec configures the Store to use a non-default Codec.
func (s *Store) WithCodec(c Codec) *Store {
	s.codec = c
	return s
}

func (s *Store) effectiveCodec() Codec {
	if s.codec != nil {
		return s.codec
	}
	return jsonCodec{}
}

func (s *Store) Save(ctx context.Context, t *task.Task) error {
	payload, err := s.effectiveCodec().Encode(t)
	if err != nil {
		return fmt.Errorf("taskstore/redis: encode task %s: %w", t.ID, err)
	}
	wire := wireTask{ID: t.ID, ContextID: t.ContextID, Status: t.Status, Payload: payload}
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("taskstore/redis: marshal task %s: %w", t.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key(t.ID), data, 0)
	pipe.SAdd(ctx, indexKey, string(t.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("taskstore/redis: save task %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id task.ID) (*task.Task, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, taskstore.ErrNotFound
		}
		return nil, fmt.Errorf("taskstore/redis: load task %s: %w", id, err)
	}
	return s.decode(data)
}

func (s *Store) decode(data []byte) (*task.Task, error) {
	var wire wireTask
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("taskstore/redis: unmarshal task: %w", err)
	}
	t := &task.Task{ID: wire.ID, ContextID: wire.ContextID, Status: wire.Status}
	if err := s.effectiveCodec().Decode(wire.Payload, t); err != nil {
		return nil, fmt.Errorf("taskstore/redis: decode task %s: %w", wire.ID, err)
	}
	return t, nil
}

func (s *Store) Delete(ctx context.Context, id task.ID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key(id))
	pipe.SRem(ctx, indexKey, string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("taskstore/redis: delete task %s: %w", id, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter taskstore.Filter) (taskstore.Page, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return taskstore.Page{}, fmt.Errorf("taskstore/redis: list index: %w", err)
	}
	sort.Strings(ids)

	var matched []*task.Task
	for _, id := range ids {
		data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
		if err == redis.Nil {
			continue // index race with a concurrent Delete; tolerate.
		}
		if err != nil {
			return taskstore.Page{}, fmt.Errorf("taskstore/redis: list load %s: %w", id, err)
		}
		t, err := s.decode(data)
		if err != nil {
			return taskstore.Page{}, err
		}
		if filter.ContextID != "" && t.ContextID != filter.ContextID {
			continue
		}
		if filter.HasStatus && t.Status.State != filter.Status {
			continue
		}
		matched = append(matched, t)
	}

	offset := 0
	if filter.PageToken != "" {
		if v, convErr := strconv.Atoi(filter.PageToken); convErr == nil && v > 0 {
			offset = v
		}
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	size := filter.PageSize
	if size <= 0 || size > len(matched) {
		size = len(matched)
	}
	page := taskstore.Page{Tasks: matched[:size]}
	if size < len(matched) {
		page.NextPageToken = strconv.Itoa(offset + size)
	}
	return page, nil
}

