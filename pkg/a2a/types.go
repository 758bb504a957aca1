// Package a2a implements the client side of the Agent-to-Agent (A2A)
// protocol as the bridge consumes it: agent-card discovery plus the
// JSON-RPC 2.0 binding for message/send, tasks/get and tasks/cancel.
// Specification: https://a2a-protocol.org/latest/specification/
package a2a

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultCardPath is the well-known location of an agent card relative
// to the agent's base URL (Spec Section 5.3).
const DefaultCardPath = "/.well-known/agent.json"

// ============================================================================
// AGENT CARD - Agent Discovery & Capability Advertisement
// ============================================================================

// AgentCard is an agent's self-reported identity and capability metadata.
// Cards are immutable once fetched; the bridge never re-fetches a card to
// mutate an existing connection.
type AgentCard struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Version     string `json:"version,omitempty"`

	ProtocolVersion string `json:"protocolVersion,omitempty"`

	Capabilities AgentCapabilities `json:"capabilities,omitempty"`
	Skills       []AgentSkill      `json:"skills,omitempty"`

	DefaultInputModes  []string `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string `json:"defaultOutputModes,omitempty"`
}

// AgentCapabilities describes optional protocol features of an agent.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming,omitempty"`
	PushNotifications bool `json:"pushNotifications,omitempty"`
}

// AgentSkill describes a specific skill the agent advertises.
type AgentSkill struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ============================================================================
// MESSAGE - Conversation Messages
// ============================================================================

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleAgent MessageRole = "agent"
)

// Message is a single conversational turn. TaskID and ContextID correlate
// the turn with a task and a dialogue on the remote side; both are
// optional on the wire.
type Message struct {
	Kind      string      `json:"kind,omitempty"` // always "message"
	MessageID string      `json:"messageId"`
	Role      MessageRole `json:"role"`
	Parts     []Part      `json:"parts"`
	TaskID    string      `json:"taskId,omitempty"`
	ContextID string      `json:"contextId,omitempty"`
}

// PartKind discriminates the Part union.
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindFile PartKind = "file"
	PartKindData PartKind = "data"
)

// Part is one piece of message content (Spec Section 6.5 union type).
type Part struct {
	Kind PartKind `json:"kind"`

	// Text part
	Text string `json:"text,omitempty"`

	// File part
	File *FilePart `json:"file,omitempty"`

	// Data part
	Data json.RawMessage `json:"data,omitempty"`
}

// FilePart references file content by URI or carries it inline.
type FilePart struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
	Bytes    string `json:"bytes,omitempty"` // base64 inline content
}

// ============================================================================
// TASK - Unit of Work
// ============================================================================

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateRejected      TaskState = "rejected"
)

// Task is a unit of asynchronous work opened by a message exchange.
type Task struct {
	Kind      string     `json:"kind,omitempty"` // always "task"
	ID        string     `json:"id"`
	ContextID string     `json:"contextId,omitempty"`
	Status    TaskStatus `json:"status"`
	History   []Message  `json:"history,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// TaskStatus carries the task state and the agent's latest status message.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Artifact is an output produced by a task.
type Artifact struct {
	ArtifactID  string `json:"artifactId,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Parts       []Part `json:"parts"`
}

// ============================================================================
// RPC PARAMETERS & RESULTS
// ============================================================================

// JSON-RPC method names of the A2A binding the bridge uses.
const (
	MethodMessageSend = "message/send"
	MethodTasksGet    = "tasks/get"
	MethodTasksCancel = "tasks/cancel"
)

// MessageSendParams are the params of message/send.
type MessageSendParams struct {
	Message Message `json:"message"`
}

// TaskIDParams are the params of tasks/get and tasks/cancel.
type TaskIDParams struct {
	ID string `json:"id"`
}

// SendResult is the result union of message/send: agents reply either
// with a plain message or with a task object. Exactly one field is set.
type SendResult struct {
	Message *Message
	Task    *Task
}

// UnmarshalJSON decodes the union, discriminating on the "kind" field
// with a structural fallback for agents that omit it.
func (r *SendResult) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind   string          `json:"kind"`
		Status json.RawMessage `json:"status"`
		Parts  json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("failed to probe send result: %w", err)
	}

	switch {
	case probe.Kind == "task" || (probe.Kind == "" && probe.Status != nil):
		var task Task
		if err := json.Unmarshal(data, &task); err != nil {
			return fmt.Errorf("failed to decode task result: %w", err)
		}
		r.Task = &task
	case probe.Kind == "message" || (probe.Kind == "" && probe.Parts != nil):
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("failed to decode message result: %w", err)
		}
		r.Message = &msg
	default:
		return fmt.Errorf("unrecognized send result kind %q", probe.Kind)
	}

	return nil
}

// ContextID returns the continuity token carried by the result, or empty
// when the agent did not supply one.
func (r *SendResult) ContextID() string {
	switch {
	case r.Message != nil:
		return r.Message.ContextID
	case r.Task != nil:
		return r.Task.ContextID
	}
	return ""
}

// ============================================================================
// ERRORS
// ============================================================================

// RemoteError is an error payload produced by the remote agent itself,
// as opposed to a local transport or decoding failure.
type RemoteError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("agent returned error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("agent returned error: %s", e.Message)
}
