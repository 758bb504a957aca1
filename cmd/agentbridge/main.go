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

// Command agentbridge serves A2A agents to an MCP host.
//
// Usage:
//
//	agentbridge serve
//	agentbridge serve --config config.yaml
//	agentbridge serve --agents '[{"endpoint":"https://agent.example.com"}]'
//	agentbridge serve --transport http --port 8080
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/agentbridge"
	"github.com/kadirpekel/agentbridge/pkg/bridge"
	"github.com/kadirpekel/agentbridge/pkg/config"
	"github.com/kadirpekel/agentbridge/pkg/metrics"
	"github.com/kadirpekel/agentbridge/pkg/registry"
	"github.com/kadirpekel/agentbridge/pkg/transport"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the bridge."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(agentbridge.GetVersion().String())
	return nil
}

// ServeCmd starts the bridge process.
type ServeCmd struct {
	Agents    string `help:"Agents to load at startup, as a JSON array of {endpoint, accessToken, cardPath} objects."`
	Transport string `help:"Serving mode: stdio or http."`
	Host      string `help:"Host to bind in http mode."`
	Port      int    `help:"Port to listen on in http mode." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := c.loadConfig(cli.Config)
	if err != nil {
		return err
	}

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat, &cfg.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	m := metrics.New(nil)
	reg := registry.New(m)

	srv := server.NewMCPServer("agentbridge", agentbridge.Version,
		server.WithToolCapabilities(true),
	)

	registrar, err := bridge.NewRegistrar(srv, reg)
	if err != nil {
		return err
	}
	facade, err := bridge.NewFacade(srv, reg, registrar)
	if err != nil {
		return err
	}
	facade.Install()

	if err := autoLoad(ctx, reg, registrar, cfg.Agents); err != nil {
		return err
	}

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		httpSrv, err := transport.NewServer(server.NewStreamableHTTPServer(srv), m, transport.Config{
			Address: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		})
		if err != nil {
			return err
		}
		return httpSrv.Start(ctx)
	default:
		slog.Info("Serving on stdio")
		return server.ServeStdio(srv)
	}
}

// loadConfig merges the config file (when given) with serve flags;
// flags win.
func (c *ServeCmd) loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		slog.Info("Loaded configuration", "path", path)
	}

	if c.Transport != "" {
		cfg.Server.Transport = c.Transport
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	if c.Agents != "" {
		entries, err := config.ParseAgentsJSON(c.Agents)
		if err != nil {
			return nil, err
		}
		cfg.Agents = append(cfg.Agents, entries...)
	}

	return cfg, cfg.Validate()
}

// autoLoad connects configured agents concurrently before the transport
// starts serving. Entries sharing an endpoint collapse to one; an agent
// that cannot be loaded is logged and skipped so one dead endpoint does
// not keep the bridge down.
func autoLoad(ctx context.Context, reg *registry.Registry, registrar *bridge.Registrar, entries []config.AgentEntry) error {
	seen := make(map[string]bool, len(entries))
	g, ctx := errgroup.WithContext(ctx)

	for _, entry := range entries {
		if seen[entry.Endpoint] {
			slog.Warn("Skipping duplicate agent endpoint", "endpoint", entry.Endpoint)
			continue
		}
		seen[entry.Endpoint] = true

		g.Go(func() error {
			card, err := reg.Load(ctx, registry.LoadConfig{
				Endpoint: entry.Endpoint,
				CardPath: entry.CardPath,
				Token:    entry.AccessToken,
			})
			if err != nil {
				slog.Warn("Failed to load agent at startup", "endpoint", entry.Endpoint, "error", err)
				return nil
			}
			registrar.Register(card)
			return nil
		})
	}

	return g.Wait()
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentbridge"),
		kong.Description("agentbridge - expose A2A agents as MCP tools"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
