// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package registry keeps live connections to remote A2A agents and
// proxies message and task operations to them. Connections are keyed by
// the sanitized card name, the same identifier the installed tools
// carry, and retained for the process lifetime; nothing is persisted.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/agentbridge/pkg/a2a"
	"github.com/kadirpekel/agentbridge/pkg/metrics"
)

// LoadConfig describes one agent to connect.
type LoadConfig struct {
	Endpoint string
	CardPath string
	Token    string
	Timeout  time.Duration
}

// AgentInfo is one row of a listing. Name is the sanitized key; the
// card carries the display name.
type AgentInfo struct {
	Name     string
	Endpoint string
	Card     *a2a.AgentCard
}

// connection is the bookkeeping for one registered agent.
//
// contextID is the dialogue continuity token last returned by the agent.
// sendMu serializes message exchanges so a racing send cannot clobber a
// freshly returned token. tasks is guarded by the registry mutex.
type connection struct {
	name     string
	endpoint string
	client   *a2a.Client
	card     *a2a.AgentCard

	sendMu    sync.Mutex
	contextID string

	tasks map[string]struct{}
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	conns   map[string]*connection
	order   []string
	metrics *metrics.Metrics
}

func New(m *metrics.Metrics) *Registry {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Registry{
		conns:   make(map[string]*connection),
		metrics: m,
	}
}

// Load connects a new agent: fetch its card, then register it under the
// sanitized card name. Sanitizing before the duplicate check means two
// cards that collapse to the same key ("Helper Bot" and "HelperBot")
// cannot coexist, since their tools would collide. The fetch happens
// outside the lock; the key check and insert are one critical section,
// so two concurrent loads of colliding agents cannot both succeed.
func (r *Registry) Load(ctx context.Context, cfg LoadConfig) (*a2a.AgentCard, error) {
	client, err := a2a.NewClient(a2a.ClientConfig{
		Endpoint: cfg.Endpoint,
		Token:    cfg.Token,
		CardPath: cfg.CardPath,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		r.metrics.ObserveLoad(err)
		return nil, err
	}

	card, err := client.Discover(ctx)
	if err != nil {
		fetchErr := &CardFetchError{Endpoint: cfg.Endpoint, Err: err}
		r.metrics.ObserveLoad(fetchErr)
		return nil, fetchErr
	}

	key := a2a.SanitizeAgentName(card.Name)

	r.mu.Lock()
	if _, exists := r.conns[key]; exists {
		r.mu.Unlock()
		dupErr := &AlreadyRegisteredError{Name: key}
		r.metrics.ObserveLoad(dupErr)
		return nil, dupErr
	}
	r.conns[key] = &connection{
		name:     key,
		endpoint: client.Endpoint(),
		client:   client,
		card:     card,
		tasks:    make(map[string]struct{}),
	}
	r.order = append(r.order, key)
	r.mu.Unlock()

	r.metrics.ObserveLoad(nil)
	r.metrics.RegisteredNow.Inc()
	slog.Info("Agent registered", "name", key, "endpoint", client.Endpoint())

	return card, nil
}

// List reports registered agents in insertion order, re-fetching each
// card so descriptions reflect the agents' current state. An agent whose
// card cannot be fetched is skipped with a warning; listing continues.
// Listing never mutates the registry, so repeated calls with no loads in
// between return identical results.
func (r *Registry) List(ctx context.Context) []AgentInfo {
	r.mu.Lock()
	conns := make([]*connection, 0, len(r.order))
	for _, name := range r.order {
		conns = append(conns, r.conns[name])
	}
	r.mu.Unlock()

	infos := make([]AgentInfo, 0, len(conns))
	for _, conn := range conns {
		card, err := conn.client.Discover(ctx)
		if err != nil {
			slog.Warn("Skipping unreachable agent in listing",
				"name", conn.name,
				"endpoint", conn.endpoint,
				"error", err)
			continue
		}
		infos = append(infos, AgentInfo{
			Name:     conn.name,
			Endpoint: conn.endpoint,
			Card:     card,
		})
	}
	return infos
}

// Names returns registered agent names in insertion order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// SendMessage delivers text to the named agent and returns the minted
// task id alongside the agent's reply. The message carries the agent's
// last continuity token; a token in the reply replaces the stored one, so
// consecutive sends land in the same remote dialogue.
func (r *Registry) SendMessage(ctx context.Context, name, text string) (string, *a2a.SendResult, error) {
	start := time.Now()

	r.mu.Lock()
	conn, exists := r.conns[name]
	if !exists {
		r.mu.Unlock()
		err := &NotRegisteredError{Name: name}
		r.metrics.ObserveCall("sendMessage", start, err)
		return "", nil, err
	}
	taskID := uuid.NewString()
	conn.tasks[taskID] = struct{}{}
	r.mu.Unlock()

	conn.sendMu.Lock()
	msg := a2a.NewTextMessage(uuid.NewString(), text)
	msg.TaskID = taskID
	msg.ContextID = conn.contextID

	result, err := conn.client.SendMessage(ctx, msg)
	if err == nil {
		if token := result.ContextID(); token != "" {
			conn.contextID = token
		}
	}
	conn.sendMu.Unlock()

	if err != nil {
		r.mu.Lock()
		delete(conn.tasks, taskID)
		r.mu.Unlock()
		r.metrics.ObserveCall("sendMessage", start, err)
		return "", nil, err
	}

	// Some agents mint their own task id instead of adopting ours. The
	// agent's id becomes canonical; the minted one is retired so it does
	// not linger in the ownership set.
	if result.Task != nil && result.Task.ID != "" && result.Task.ID != taskID {
		r.mu.Lock()
		delete(conn.tasks, taskID)
		conn.tasks[result.Task.ID] = struct{}{}
		r.mu.Unlock()
		taskID = result.Task.ID
	}

	r.metrics.ObserveCall("sendMessage", start, nil)
	return taskID, result, nil
}

// GetTask polls a task owned by the named agent. A task id the agent
// never issued, or one belonging to a different agent, is rejected
// locally without a network round trip.
func (r *Registry) GetTask(ctx context.Context, name, taskID string) (*a2a.Task, error) {
	start := time.Now()

	conn, err := r.lookupTask(name, taskID, false)
	if err != nil {
		r.metrics.ObserveCall("getTask", start, err)
		return nil, err
	}

	task, err := conn.client.GetTask(ctx, taskID)
	r.metrics.ObserveCall("getTask", start, err)
	return task, err
}

// CancelTask cancels a task owned by the named agent. The id is consumed
// from the ownership set before the remote call, so a racing duplicate
// cancel or a later poll of the same id observes TaskNotFoundError. A
// remote failure puts the id back, leaving the task manageable.
func (r *Registry) CancelTask(ctx context.Context, name, taskID string) (*a2a.Task, error) {
	start := time.Now()

	conn, err := r.lookupTask(name, taskID, true)
	if err != nil {
		r.metrics.ObserveCall("cancelTask", start, err)
		return nil, err
	}

	task, err := conn.client.CancelTask(ctx, taskID)
	if err != nil {
		r.mu.Lock()
		conn.tasks[taskID] = struct{}{}
		r.mu.Unlock()
	}
	r.metrics.ObserveCall("cancelTask", start, err)
	return task, err
}

// lookupTask resolves the connection and checks task ownership in one
// critical section, optionally consuming the id.
func (r *Registry) lookupTask(name, taskID string, remove bool) (*connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.conns[name]
	if !exists {
		return nil, &NotRegisteredError{Name: name}
	}
	if _, owned := conn.tasks[taskID]; !owned {
		return nil, &TaskNotFoundError{Name: name, TaskID: taskID}
	}
	if remove {
		delete(conn.tasks, taskID)
	}
	return conn, nil
}
