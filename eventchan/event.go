// Package eventchan implements the bounded, multi-producer/single-consumer
// pipe of AgentExecutionEvent values that connects the Agent Executor (C4)
// to the Result Manager (C3).
package eventchan

import "github.com/agentfleet/orchestrator/task"

// Kind discriminates the AgentExecutionEvent tagged union.
type Kind string

const (
	KindStatusUpdate   Kind = "status_update"
	KindArtifactUpdate Kind = "artifact_update"
	KindMessage        Kind = "message"
	KindModelChange    Kind = "model_change"
	KindNotification   Kind = "notification"
)

// ArtifactUpdate carries an artifact mutation: replace (Append=false) or
// extend (Append=true) the artifact's parts, optionally closing the stream.
type ArtifactUpdate struct {
	Artifact  *task.Artifact
	Append    bool
	LastChunk bool
}

// ModelChange records a mid-run provider or mode switch.
type ModelChange struct {
	Model string
	Mode  string
}

// Notification is a free-form, out-of-band signal (for example, a hook
// decision or a long-running tool progress ping).
type Notification struct {
	ID      string
	Payload any
}

// Event is the sole value type carried on the Event Channel. Exactly the
// field matching Kind is populated; the rest are zero.
type Event struct {
	Kind Kind

	Status       *task.StatusUpdate
	Artifact     *ArtifactUpdate
	Message      *task.Message
	ModelChange  *ModelChange
	Notification *Notification
}

// StatusUpdateEvent constructs a status-update event.
func StatusUpdateEvent(s task.StatusUpdate) Event {
	return Event{Kind: KindStatusUpdate, Status: &s}
}

// ArtifactUpdateEvent constructs an artifact-update event.
func ArtifactUpdateEvent(a *task.Artifact, appendParts, lastChunk bool) Event {
	return Event{Kind: KindArtifactUpdate, Artifact: &ArtifactUpdate{Artifact: a, Append: appendParts, LastChunk: lastChunk}}
}

// MessageEvent constructs a message event carrying a completed history
// entry.
func MessageEvent(m task.Message) Event {
	return Event{Kind: KindMessage, Message: &m}
}

// ModelChangeEvent constructs a model/mode switch notification event.
func ModelChangeEvent(modelName, mode string) Event {
	return Event{Kind: KindModelChange, ModelChange: &ModelChange{Model: modelName, Mode: mode}}
}

// NotificationEvent constructs a free-form notification event.
func NotificationEvent(id string, payload any) Event {
	return Event{Kind: KindNotification, Notification: &Notification{ID: id, Payload: payload}}
}
