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

// Package bridge projects registered A2A agents onto an MCP server as
// callable tools. The Registrar installs per-agent operation tools; the
// Facade installs the static management tools.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kadirpekel/agentbridge/pkg/a2a"
	"github.com/kadirpekel/agentbridge/pkg/registry"
)

// ToolServer is the slice of *server.MCPServer the bridge needs.
type ToolServer interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// Registrar installs the three operation tools of a loaded agent:
// <name>-sendMessage, <name>-getTask and <name>-cancelTask, where <name>
// is the card name with whitespace stripped. Tools are never removed;
// the registry's duplicate rejection keeps names from colliding.
type Registrar struct {
	srv      ToolServer
	registry *registry.Registry
}

func NewRegistrar(srv ToolServer, reg *registry.Registry) (*Registrar, error) {
	if srv == nil {
		return nil, fmt.Errorf("tool server is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	return &Registrar{srv: srv, registry: reg}, nil
}

// Register installs the operation tools for card and returns the
// installed tool names. Handlers address the registry by the sanitized
// name, the key it registered the connection under; the card name only
// appears in text shown to the host.
func (r *Registrar) Register(card *a2a.AgentCard) []string {
	agent := card.Name
	prefix := a2a.SanitizeAgentName(agent)

	sendName := prefix + "-sendMessage"
	getName := prefix + "-getTask"
	cancelName := prefix + "-cancelTask"

	r.srv.AddTool(mcp.NewTool(sendName,
		mcp.WithDescription(sendDescription(card)),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Text to deliver to the agent"),
		),
	), r.sendMessageHandler(prefix, agent))

	r.srv.AddTool(mcp.NewTool(getName,
		mcp.WithDescription(fmt.Sprintf("Poll the status and output of a task previously opened with %s", sendName)),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("Task id returned by a previous send"),
		),
	), r.getTaskHandler(prefix, agent))

	r.srv.AddTool(mcp.NewTool(cancelName,
		mcp.WithDescription(fmt.Sprintf("Cancel a running task previously opened with %s", sendName)),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("Task id returned by a previous send"),
		),
	), r.cancelTaskHandler(prefix, agent))

	slog.Info("Agent tools installed", "agent", agent, "tools", []string{sendName, getName, cancelName})

	return []string{sendName, getName, cancelName}
}

func sendDescription(card *a2a.AgentCard) string {
	desc := fmt.Sprintf("Send a message to the %q agent and return its reply", card.Name)
	if card.Description != "" {
		desc += ". Agent description: " + card.Description
	}
	return desc
}

func (r *Registrar) sendMessageHandler(key, agent string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, ok := req.GetArguments()["message"].(string)
		if !ok || text == "" {
			return mcp.NewToolResultText(`The "message" argument is required and must be a non-empty string.`), nil
		}

		taskID, result, err := r.registry.SendMessage(ctx, key, text)
		if err != nil {
			return mcp.NewToolResultText(failureText(agent, "sendMessage", err)), nil
		}

		return mcp.NewToolResultText(renderSendResult(taskID, result)), nil
	}
}

func (r *Registrar) getTaskHandler(key, agent string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, ok := req.GetArguments()["taskId"].(string)
		if !ok || taskID == "" {
			return mcp.NewToolResultText(`The "taskId" argument is required and must be a non-empty string.`), nil
		}

		task, err := r.registry.GetTask(ctx, key, taskID)
		if err != nil {
			return mcp.NewToolResultText(failureText(agent, "getTask", err)), nil
		}

		return mcp.NewToolResultText(renderTask(task)), nil
	}
}

func (r *Registrar) cancelTaskHandler(key, agent string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, ok := req.GetArguments()["taskId"].(string)
		if !ok || taskID == "" {
			return mcp.NewToolResultText(`The "taskId" argument is required and must be a non-empty string.`), nil
		}

		task, err := r.registry.CancelTask(ctx, key, taskID)
		if err != nil {
			return mcp.NewToolResultText(failureText(agent, "cancelTask", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Cancellation requested for task %s; the agent reports state %q.", task.ID, task.Status.State)), nil
	}
}

// failureText turns an operation error into a sentence the calling model
// can act on. An error reported by the agent itself quotes the agent, so
// remote failures are distinguishable from local ones.
func failureText(agent, operation string, err error) string {
	var remoteErr *a2a.RemoteError
	if errors.As(err, &remoteErr) {
		return fmt.Sprintf("Agent %q reported an error for %s: %s", agent, operation, remoteErr.Message)
	}

	var notReg *registry.NotRegisteredError
	if errors.As(err, &notReg) {
		return fmt.Sprintf("No agent named %q is loaded; %s was not attempted. Use list_agents to see loaded agents.", agent, operation)
	}

	var notFound *registry.TaskNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Sprintf("Agent %q has no task %q; it may have been canceled or belong to another agent.", agent, notFound.TaskID)
	}

	return fmt.Sprintf("Operation %s against agent %q failed: %v", operation, agent, err)
}

func renderSendResult(taskID string, result *a2a.SendResult) string {
	if result.Message != nil {
		if text := a2a.ExtractTextFromMessage(result.Message); text != "" {
			return text
		}
		return "The agent replied with a message carrying no text."
	}

	task := result.Task
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task %s opened; current state is %q.", taskID, task.Status.State)
	if text := a2a.ExtractTextFromTask(task); text != "" {
		sb.WriteString("\n")
		sb.WriteString(text)
	}
	return sb.String()
}

func renderTask(task *a2a.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task %s is %q.", task.ID, task.Status.State)
	if text := a2a.ExtractTextFromTask(task); text != "" {
		sb.WriteString("\n")
		sb.WriteString(text)
	}
	return sb.String()
}
