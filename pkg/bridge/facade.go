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

package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kadirpekel/agentbridge/pkg/registry"
)

// Facade owns the two management tools every bridge process exposes:
// load_agent and list_agents. Loading an agent registers it and installs
// its operation tools through the Registrar.
type Facade struct {
	srv       ToolServer
	registry  *registry.Registry
	registrar *Registrar
}

func NewFacade(srv ToolServer, reg *registry.Registry, registrar *Registrar) (*Facade, error) {
	if srv == nil {
		return nil, fmt.Errorf("tool server is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if registrar == nil {
		return nil, fmt.Errorf("registrar is required")
	}
	return &Facade{srv: srv, registry: reg, registrar: registrar}, nil
}

// Install adds load_agent and list_agents to the server.
func (f *Facade) Install() {
	f.srv.AddTool(mcp.NewTool("load_agent",
		mcp.WithDescription("Connect a remote agent by endpoint URL. On success the agent's operation tools become available."),
		mcp.WithString("endpoint",
			mcp.Required(),
			mcp.Description("Base URL of the agent, e.g. https://agent.example.com"),
		),
		mcp.WithString("card_path",
			mcp.Description("Agent card path when it differs from /.well-known/agent.json"),
		),
		mcp.WithString("token",
			mcp.Description("Bearer token sent on every request to this agent"),
		),
	), f.loadAgentHandler())

	f.srv.AddTool(mcp.NewTool("list_agents",
		mcp.WithDescription("List the currently loaded agents with their endpoints and descriptions."),
	), f.listAgentsHandler())
}

func (f *Facade) loadAgentHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		endpoint, ok := args["endpoint"].(string)
		if !ok || endpoint == "" {
			return mcp.NewToolResultText(`The "endpoint" argument is required and must be a non-empty URL.`), nil
		}
		cardPath, _ := args["card_path"].(string)
		token, _ := args["token"].(string)

		card, err := f.registry.Load(ctx, registry.LoadConfig{
			Endpoint: endpoint,
			CardPath: cardPath,
			Token:    token,
		})
		if err != nil {
			return mcp.NewToolResultText(loadFailureText(endpoint, err)), nil
		}

		tools := f.registrar.Register(card)
		return mcp.NewToolResultText(fmt.Sprintf(
			"Loaded agent %q from %s. New tools: %s.",
			card.Name, endpoint, strings.Join(tools, ", "))), nil
	}
}

func (f *Facade) listAgentsHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		infos := f.registry.List(ctx)
		if len(infos) == 0 {
			return mcp.NewToolResultText("No agents loaded. Use load_agent to connect one."), nil
		}

		var sb strings.Builder
		for _, info := range infos {
			fmt.Fprintf(&sb, "%s — %s", info.Name, info.Endpoint)
			if info.Card.Description != "" {
				fmt.Fprintf(&sb, ": %s", info.Card.Description)
			}
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(strings.TrimRight(sb.String(), "\n")), nil
	}
}

func loadFailureText(endpoint string, err error) string {
	var dupErr *registry.AlreadyRegisteredError
	if errors.As(err, &dupErr) {
		return fmt.Sprintf("An agent named %q is already loaded; the agent at %s was not registered.", dupErr.Name, endpoint)
	}

	var fetchErr *registry.CardFetchError
	if errors.As(err, &fetchErr) {
		return fmt.Sprintf("Could not fetch the agent card from %s: %v. No tools were installed.", endpoint, fetchErr.Err)
	}

	return fmt.Sprintf("Loading the agent at %s failed: %v", endpoint, err)
}
