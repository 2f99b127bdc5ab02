package main

import (
	"fmt"
	"strings"

	"github.com/MimeLyc/taskagent/internal/agent"
	"github.com/MimeLyc/taskagent/internal/config"
	"github.com/MimeLyc/taskagent/internal/llm"
	"github.com/MimeLyc/taskagent/internal/metrics"
	"github.com/MimeLyc/taskagent/internal/persistence"
	"github.com/MimeLyc/taskagent/internal/report"
	"github.com/MimeLyc/taskagent/internal/tools"
	"github.com/MimeLyc/taskagent/pkg/log"
)

// app wires the configured components together
type app struct {
	cfg      *config.Config
	client   *llm.Client
	registry *tools.Registry
	store    *persistence.SQLiteStore
	recorder *metrics.Recorder
}

// loadConfig reads the environment and the runtime settings file
func loadConfig(opts ...config.Option) (*config.Config, error) {
	settings, ok, err := config.LoadRuntimeSettingsFile(config.RuntimeSettingsFilePath())
	if err != nil {
		return nil, fmt.Errorf("load runtime settings: %w", err)
	}
	if ok {
		opts = append([]config.Option{config.WithRuntimeSettings(settings)}, opts...)
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return nil, err
	}
	log.GetLogger().SetLevel(log.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

func newApp(cfg *config.Config) (*app, error) {
	client, err := llm.NewClient(cfg.LLM.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, tools.BuiltinOptions{
		TerminalTool: cfg.Agent.TerminalTool,
		HTTPTimeout:  cfg.Tools.HTTPTimeout,
		SearchAPIKey: cfg.Search.APIKey,
		SearchAPIURL: cfg.Search.APIURL,
		JinaAPIKey:   cfg.Scrape.JinaAPIKey,
		JinaBaseURL:  cfg.Scrape.JinaBaseURL,
		BaseDir:      cfg.Tools.BaseDir,
		Vision:       client,
		Transcriber:  client,
	}); err != nil {
		return nil, err
	}
	if cfg.Tools.File != "" {
		n, err := tools.RegisterManifest(registry, cfg.Tools.File)
		if err != nil {
			return nil, fmt.Errorf("load tool manifest: %w", err)
		}
		log.Info("Registered %d tools from %s", n, cfg.Tools.File)
	}
	log.Info("Tools: %s", strings.Join(registry.List(), ", "))

	a := &app{
		cfg:      cfg,
		client:   client,
		registry: registry,
		recorder: metrics.NewRecorder(),
	}
	if cfg.Store.Enabled() {
		store, err := persistence.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open run store: %w", err)
		}
		a.store = store
	}
	return a, nil
}

func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// newAgent builds an agent with the configured observers. planSink may be nil.
func (a *app) newAgent(planSink func(string)) (*agent.LLMAgent, error) {
	observers := agent.Observers{}
	var journal *agent.MarkdownJournal
	if a.cfg.Agent.JournalEnabled() {
		var err error
		journal, err = agent.NewMarkdownJournal(a.cfg.Agent.Journal)
		if err != nil {
			return nil, err
		}
		observers = append(observers, journal)
	}
	if a.store != nil {
		observers = append(observers, persistence.NewRunObserver(a.store))
	}

	gateway := agent.WithRetry(a.client, agent.RetryPolicy{
		MaxRetries: a.cfg.Agent.GatewayRetries,
		Backoff:    a.cfg.Agent.GatewayBackoff,
	})

	ag, err := agent.NewLLMAgent(gateway, a.registry, agent.Options{
		MaxSteps:     a.cfg.Agent.MaxSteps,
		TerminalTool: a.cfg.Agent.TerminalTool,
		Reflect:      a.cfg.Agent.Reflect,
		Stage: agent.StageOptions{
			Timeout:     a.cfg.Agent.StageTimeout,
			Temperature: a.cfg.LLM.Temperature,
		},
		PlanSink: planSink,
		Observer: observers,
		Metrics:  a.recorder,
	})
	if err != nil {
		if journal != nil {
			_ = journal.Close()
		}
		return nil, err
	}
	if journal != nil {
		ag.OnClose(journal.Close)
	}
	return ag, nil
}

func (a *app) newReporter() (*report.Client, error) {
	return report.NewClient(a.cfg.Report.URL, a.cfg.Report.APIKey, a.cfg.Tools.HTTPTimeout)
}
