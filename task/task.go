// Package task defines the Task, Artifact, and Message data model owned by
// the Task Store (C2) and mutated exclusively by the Result Manager (C3).
package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/orchestrator/model"
)

// ID is an opaque, process-unique task identifier.
type ID string

// NewID generates a fresh, process-unique task ID.
func NewID() ID { return ID(uuid.NewString()) }

// ContextID groups related tasks, for example successive turns in one
// conversation. A fresh ContextID is minted when the caller does not
// supply one.
type ContextID string

// NewContextID generates a fresh context ID.
func NewContextID() ContextID { return ContextID(uuid.NewString()) }

// Status is the task lifecycle state machine: Submitted -> Working ->
// {Completed | Failed | Canceled | InputRequired}.
type Status string

const (
	StatusSubmitted     Status = "submitted"
	StatusWorking       Status = "working"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusCanceled      Status = "canceled"
	StatusInputRequired Status = "input_required"
)

// Terminal reports whether s is a terminal status. Once a Task reaches a
// terminal status, no field other than artifacts.appended may change
// (spec invariant P2).
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// validTransitions enumerates the state machine edges. Submitted is the
// only start state and is never a transition target.
var validTransitions = map[Status]map[Status]bool{
	StatusSubmitted: {
		StatusWorking: true,
	},
	StatusWorking: {
		StatusCompleted:     true,
		StatusFailed:        true,
		StatusCanceled:      true,
		StatusInputRequired: true,
	},
	StatusInputRequired: {
		StatusWorking:  true,
		StatusCanceled: true,
	},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal edge
// in the task state machine.
func CanTransition(from, to Status) bool {
	return validTransitions[from][to]
}

// StatusUpdate is a timestamped status snapshot, recorded on Task.Status
// and emitted on the event channel as AgentExecutionEvent.StatusUpdate.
type StatusUpdate struct {
	State     Status
	Reason    string
	Timestamp time.Time
}

// Task is the unit of agent work identified by ID, carrying status,
// artifacts, and message history. Once Status.State is terminal, no field
// may change except by appending to an existing artifact with
// LastChunk=false (see Artifact.ApplyUpdate).
type Task struct {
	ID        ID
	ContextID ContextID
	Status    StatusUpdate
	Artifacts []*Artifact
	History   []Message
}

// NewTask creates a freshly submitted task.
func NewTask(id ID, contextID ContextID) *Task {
	return &Task{
		ID:        id,
		ContextID: contextID,
		Status:    StatusUpdate{State: StatusSubmitted, Timestamp: time.Now().UTC()},
	}
}

// ArtifactByID returns the artifact with the given ID, or nil if absent.
func (t *Task) ArtifactByID(id string) *Artifact {
	for _, a := range t.Artifacts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Message is a single entry in a Task's history: a role, ordered content
// parts, and optional routing metadata.
type Message struct {
	MessageID        string
	Role             model.ConversationRole
	Parts            []model.Part
	ContextID        ContextID
	TaskID           ID
	ReferenceTaskIDs []ID
}

// Artifact is structured output produced by an agent within a task. It is
// append-only: an update with Append=false replaces Parts, Append=true
// extends them, and LastChunk marks the end of a streaming artifact.
type Artifact struct {
	ID        string
	Name      string
	Parts     []model.Part
	LastChunk bool
}

// ApplyUpdate mutates the artifact in place per the append/replace
// semantics described on Artifact.
func (a *Artifact) ApplyUpdate(parts []model.Part, appendParts, lastChunk bool) {
	if appendParts {
		a.Parts = append(a.Parts, parts...)
	} else {
		a.Parts = parts
	}
	a.LastChunk = lastChunk
}
