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

package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentbridge/pkg/a2a"
)

// fakeAgent is an in-process A2A peer. It records received context
// tokens and replies to message/send with a task carrying replyContext.
// A non-empty mintTaskID makes it ignore the incoming task id and answer
// with its own, like agents that manage their own task lifecycle.
type fakeAgent struct {
	name         string
	replyContext string
	mintTaskID   string

	mu           sync.Mutex
	seenContexts []string
	canceled     []string

	srv *httptest.Server
}

func newFakeAgent(t *testing.T, name, replyContext string) *fakeAgent {
	t.Helper()
	f := &fakeAgent{name: name, replyContext: replyContext}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAgent) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		_ = json.NewEncoder(w).Encode(a2a.AgentCard{Name: f.name, Description: "fake"})
		return
	}

	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	var result any
	switch req.Method {
	case a2a.MethodMessageSend:
		var p a2a.MessageSendParams
		_ = json.Unmarshal(req.Params, &p)
		f.mu.Lock()
		f.seenContexts = append(f.seenContexts, p.Message.ContextID)
		f.mu.Unlock()
		taskID := p.Message.TaskID
		if f.mintTaskID != "" {
			taskID = f.mintTaskID
		}
		result = a2a.Task{
			Kind:      "task",
			ID:        taskID,
			ContextID: f.replyContext,
			Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
		}
	case a2a.MethodTasksGet:
		var p a2a.TaskIDParams
		_ = json.Unmarshal(req.Params, &p)
		result = a2a.Task{Kind: "task", ID: p.ID, Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}
	case a2a.MethodTasksCancel:
		var p a2a.TaskIDParams
		_ = json.Unmarshal(req.Params, &p)
		f.mu.Lock()
		f.canceled = append(f.canceled, p.ID)
		f.mu.Unlock()
		result = a2a.Task{Kind: "task", ID: p.ID, Status: a2a.TaskStatus{State: a2a.TaskStateCanceled}}
	}

	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func mustLoad(t *testing.T, r *Registry, endpoint string) *a2a.AgentCard {
	t.Helper()
	card, err := r.Load(context.Background(), LoadConfig{Endpoint: endpoint})
	require.NoError(t, err)
	return card
}

func TestLoadAndList(t *testing.T) {
	alpha := newFakeAgent(t, "alpha", "")
	beta := newFakeAgent(t, "beta", "")

	r := New(nil)
	mustLoad(t, r, alpha.srv.URL)
	mustLoad(t, r, beta.srv.URL)

	infos := r.List(context.Background())
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, "beta", infos[1].Name)
	assert.Equal(t, alpha.srv.URL, infos[0].Endpoint)

	// Listing is read-only: repeating it yields the same view.
	again := r.List(context.Background())
	assert.Equal(t, infos, again)
}

func TestLoadDuplicateNameRejected(t *testing.T) {
	first := newFakeAgent(t, "helper", "")
	second := newFakeAgent(t, "helper", "")

	r := New(nil)
	mustLoad(t, r, first.srv.URL)

	_, err := r.Load(context.Background(), LoadConfig{Endpoint: second.srv.URL})
	var dupErr *AlreadyRegisteredError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "helper", dupErr.Name)

	// The losing load must not disturb the surviving connection.
	assert.Equal(t, []string{"helper"}, r.Names())
	infos := r.List(context.Background())
	require.Len(t, infos, 1)
	assert.Equal(t, first.srv.URL, infos[0].Endpoint)
}

func TestLoadCollidingSanitizedNames(t *testing.T) {
	first := newFakeAgent(t, "Helper Bot", "")
	second := newFakeAgent(t, "HelperBot", "")

	r := New(nil)
	mustLoad(t, r, first.srv.URL)

	// Both card names collapse to the key the tools are named after, so
	// the second agent must be rejected, not silently shadow the first.
	_, err := r.Load(context.Background(), LoadConfig{Endpoint: second.srv.URL})
	var dupErr *AlreadyRegisteredError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "HelperBot", dupErr.Name)
	assert.Equal(t, []string{"HelperBot"}, r.Names())

	// The surviving connection answers under the sanitized name and
	// still points at the first agent.
	_, _, err = r.SendMessage(context.Background(), "HelperBot", "hello")
	require.NoError(t, err)
	first.mu.Lock()
	sends := len(first.seenContexts)
	first.mu.Unlock()
	assert.Equal(t, 1, sends)
}

func TestLoadUnreachableEndpoint(t *testing.T) {
	r := New(nil)
	_, err := r.Load(context.Background(), LoadConfig{Endpoint: "http://127.0.0.1:1"})
	var fetchErr *CardFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, r.Names())
}

func TestListSkipsUnreachableAgent(t *testing.T) {
	stable := newFakeAgent(t, "stable", "")
	flaky := &fakeAgent{name: "flaky"}
	flaky.srv = httptest.NewServer(http.HandlerFunc(flaky.handle))

	r := New(nil)
	mustLoad(t, r, flaky.srv.URL)
	mustLoad(t, r, stable.srv.URL)

	flaky.srv.Close()

	infos := r.List(context.Background())
	require.Len(t, infos, 1)
	assert.Equal(t, "stable", infos[0].Name)
}

func TestSendMessageContextContinuity(t *testing.T) {
	agent := newFakeAgent(t, "helper", "ctx-42")

	r := New(nil)
	mustLoad(t, r, agent.srv.URL)

	_, result, err := r.SendMessage(context.Background(), "helper", "first")
	require.NoError(t, err)
	require.NotNil(t, result.Task)

	_, _, err = r.SendMessage(context.Background(), "helper", "second")
	require.NoError(t, err)

	// First send carries no token; the second reuses the agent's reply.
	agent.mu.Lock()
	defer agent.mu.Unlock()
	require.Equal(t, []string{"", "ctx-42"}, agent.seenContexts)
}

func TestContextTokensNeverCrossAgents(t *testing.T) {
	alpha := newFakeAgent(t, "alpha", "alpha-ctx")
	beta := newFakeAgent(t, "beta", "beta-ctx")

	r := New(nil)
	mustLoad(t, r, alpha.srv.URL)
	mustLoad(t, r, beta.srv.URL)

	_, _, err := r.SendMessage(context.Background(), "alpha", "one")
	require.NoError(t, err)
	_, _, err = r.SendMessage(context.Background(), "beta", "two")
	require.NoError(t, err)
	_, _, err = r.SendMessage(context.Background(), "alpha", "three")
	require.NoError(t, err)

	// beta never sees alpha's token; alpha's second send does.
	beta.mu.Lock()
	assert.Equal(t, []string{""}, beta.seenContexts)
	beta.mu.Unlock()

	alpha.mu.Lock()
	assert.Equal(t, []string{"", "alpha-ctx"}, alpha.seenContexts)
	alpha.mu.Unlock()
}

func TestPeerMintedTaskIDReplacesLocal(t *testing.T) {
	agent := newFakeAgent(t, "helper", "")
	agent.mintTaskID = "remote-7"

	r := New(nil)
	mustLoad(t, r, agent.srv.URL)

	taskID, _, err := r.SendMessage(context.Background(), "helper", "work")
	require.NoError(t, err)
	assert.Equal(t, "remote-7", taskID)

	task, err := r.GetTask(context.Background(), "helper", "remote-7")
	require.NoError(t, err)
	assert.Equal(t, "remote-7", task.ID)

	// The locally minted id is retired, not left behind in the
	// ownership set.
	r.mu.Lock()
	assert.Len(t, r.conns["helper"].tasks, 1)
	r.mu.Unlock()
}

func TestSendMessageUnknownAgent(t *testing.T) {
	r := New(nil)
	_, _, err := r.SendMessage(context.Background(), "ghost", "hello")
	var notErr *NotRegisteredError
	require.ErrorAs(t, err, &notErr)
}

func TestTaskOwnershipIsolation(t *testing.T) {
	alpha := newFakeAgent(t, "alpha", "")
	beta := newFakeAgent(t, "beta", "")

	r := New(nil)
	mustLoad(t, r, alpha.srv.URL)
	mustLoad(t, r, beta.srv.URL)

	taskID, _, err := r.SendMessage(context.Background(), "alpha", "work")
	require.NoError(t, err)

	// The owner resolves it; the other agent does not.
	task, err := r.GetTask(context.Background(), "alpha", taskID)
	require.NoError(t, err)
	assert.Equal(t, taskID, task.ID)

	_, err = r.GetTask(context.Background(), "beta", taskID)
	var notFound *TaskNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "beta", notFound.Name)
}

func TestCancelThenGet(t *testing.T) {
	agent := newFakeAgent(t, "helper", "")

	r := New(nil)
	mustLoad(t, r, agent.srv.URL)

	taskID, _, err := r.SendMessage(context.Background(), "helper", "work")
	require.NoError(t, err)

	task, err := r.CancelTask(context.Background(), "helper", taskID)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, task.Status.State)

	// The id is consumed by the cancel.
	_, err = r.GetTask(context.Background(), "helper", taskID)
	var notFound *TaskNotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = r.CancelTask(context.Background(), "helper", taskID)
	require.ErrorAs(t, err, &notFound)

	// Exactly one cancel reached the agent.
	agent.mu.Lock()
	defer agent.mu.Unlock()
	assert.Equal(t, []string{taskID}, agent.canceled)
}

func TestGetTaskUnknownID(t *testing.T) {
	agent := newFakeAgent(t, "helper", "")

	r := New(nil)
	mustLoad(t, r, agent.srv.URL)

	_, err := r.GetTask(context.Background(), "helper", "never-issued")
	var notFound *TaskNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "never-issued", notFound.TaskID)
}

func TestConcurrentLoadsSameName(t *testing.T) {
	agents := []*fakeAgent{
		newFakeAgent(t, "same", ""),
		newFakeAgent(t, "same", ""),
		newFakeAgent(t, "same", ""),
		newFakeAgent(t, "same", ""),
	}

	r := New(nil)

	var wg sync.WaitGroup
	errs := make([]error, len(agents))
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			_, errs[i] = r.Load(context.Background(), LoadConfig{Endpoint: endpoint})
		}(i, agent.srv.URL)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			var dupErr *AlreadyRegisteredError
			require.ErrorAs(t, err, &dupErr)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, []string{"same"}, r.Names())
}
