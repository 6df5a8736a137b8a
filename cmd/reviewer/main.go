// Command reviewer runs the story write-and-review agent, either as an A2A
// server or as a one-shot demo.
//
// Usage:
//
//	reviewer serve --config config.yaml
//	reviewer demo "Tell me a story about caterpillars"
//	reviewer version
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/storymesh/reviewer/a2a"
	"github.com/storymesh/reviewer/config"
	"github.com/storymesh/reviewer/engine"
	"github.com/storymesh/reviewer/logging"
	"github.com/storymesh/reviewer/model"
	"github.com/storymesh/reviewer/model/anthropic"
	"github.com/storymesh/reviewer/model/openai"
	"github.com/storymesh/reviewer/story"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Start the A2A server."`
	Demo    DemoCmd    `cmd:"" help:"Run the write-and-review workflow once and print the result."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config string `short:"c" help:"Path to config file." type:"path"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("reviewer"),
		kong.Description("Story write-and-review agent with an A2A protocol server."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(*CLI) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	fmt.Printf("reviewer version %s\n", version)
	return nil
}

// ServeCmd starts the A2A server.
type ServeCmd struct {
	Host string `help:"Listen host (overrides config)."`
	Port int    `help:"Listen port (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	logger := newLogger(cfg)

	app, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           app.server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("a2a server listening", "addr", cfg.Server.Address())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// DemoCmd runs the workflow once, the way an embedding application would
// invoke it programmatically.
type DemoCmd struct {
	Intent string `arg:"" optional:"" default:"Tell me a story about caterpillars" help:"User input for the story."`
}

func (c *DemoCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	app, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}

	result, err := app.engine.Execute(context.Background(), c.Intent)
	if err != nil {
		return fmt.Errorf("workflow failed: %w", err)
	}

	fmt.Println(result.OutputText())
	return nil
}

// app bundles the wired components.
type app struct {
	engine *engine.Engine
	server *a2a.Server
}

func buildApp(cfg config.Config, logger *logging.AppLogger) (*app, error) {
	llm, err := buildModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	writer := story.NewWriter(llm, func(o *story.WriterOptions) {
		o.WordCount = cfg.Agent.StoryWordCount
	})
	reviewer := story.NewReviewer(llm, func(o *story.ReviewerOptions) {
		o.WordCount = cfg.Agent.ReviewWordCount
	})

	eng := engine.New(func(o *engine.Options) {
		o.Logger = logger.WithComponent("engine")
	})
	eng.Register(story.NewWriteAndReviewFrom(writer, reviewer))

	store, err := buildStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	a2aLogger := logger.WithComponent("a2a")
	registry := a2a.NewStreamRegistry(func(o *a2a.StreamRegistryOptions) {
		o.Logger = a2aLogger
	})
	metrics := a2a.NewMetrics(prometheus.DefaultRegisterer)
	emitter := a2a.NewOutputEmitter(registry, func(o *a2a.OutputEmitterOptions) {
		o.Logger = a2aLogger
		o.Metrics = metrics
	})
	handler := a2a.NewRequestHandler(eng, registry, emitter, func(o *a2a.RequestHandlerOptions) {
		o.Store = store
		o.Logger = a2aLogger
	})

	server := a2a.NewServer(handler, agentCard(cfg), func(o *a2a.ServerOptions) {
		o.Store = store
		o.Logger = a2aLogger
		o.Metrics = metrics
	})

	return &app{engine: eng, server: server}, nil
}

func buildModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
		}), nil
	case "mock":
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func buildStore(cfg config.StorageConfig) (a2a.TaskStore, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		return a2a.NewGormTaskStore(db)
	default:
		return a2a.NewInMemoryTaskStore(), nil
	}
}

func agentCard(cfg config.Config) a2a.AgentCard {
	baseURL := cfg.Server.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s", cfg.Server.Address())
	}
	return a2a.AgentCard{
		Name:               "story-reviewer",
		Description:        "Writes a short story from your input and reviews it",
		URL:                baseURL,
		Version:            "1.0.0",
		Capabilities:       a2a.AgentCapabilities{Streaming: true},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []a2a.AgentSkill{
			{
				ID:          "write-and-review",
				Name:        "Write and review a story",
				Description: "Drafts a short story and critiques it",
				Tags:        []string{"creative-writing", "review"},
			},
		},
	}
}

func newLogger(cfg config.Config) *logging.AppLogger {
	return logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, false)
}
