package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rudi77/taskreactor/approval"
	"github.com/rudi77/taskreactor/config"
	"github.com/rudi77/taskreactor/llmcap"
	"github.com/rudi77/taskreactor/llmcap/anthropic"
	"github.com/rudi77/taskreactor/llmcap/openai"
	"github.com/rudi77/taskreactor/plan"
	"github.com/rudi77/taskreactor/planner"
	"github.com/rudi77/taskreactor/replanner"
	"github.com/rudi77/taskreactor/run"
	"github.com/rudi77/taskreactor/runlog"
	"github.com/rudi77/taskreactor/scheduler"
	"github.com/rudi77/taskreactor/session"
	"github.com/rudi77/taskreactor/store/filestore"
	"github.com/rudi77/taskreactor/store/inmem"
	"github.com/rudi77/taskreactor/store/mongostore"
	"github.com/rudi77/taskreactor/store/redisstore"
	"github.com/rudi77/taskreactor/telemetry"
	"github.com/rudi77/taskreactor/tool"
	"github.com/rudi77/taskreactor/tool/builtin"
)

var (
	flagConfig   string
	flagStore    string
	flagMongo    string
	flagRedis    string
	flagProvider string
	flagJSON     bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskreactor",
		Short: "Drive ReAct missions against a registered tool catalog",
		Long: `taskreactor runs a planning-execution-replanning loop over a mission:
it asks an LLM capability to produce a plan, executes each step's chosen
tool, and suspends for human input when a step asks a question or a
high-risk tool needs approval.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "taskreactor.yaml", "path to the engine config file")
	root.PersistentFlags().StringVar(&flagStore, "store", "inmem", "durable store backend: inmem, file, mongo, or redis")
	root.PersistentFlags().StringVar(&flagMongo, "mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI (store=mongo)")
	root.PersistentFlags().StringVar(&flagRedis, "redis-addr", "localhost:6379", "Redis address (store=redis)")
	root.PersistentFlags().StringVar(&flagProvider, "provider", "anthropic", "LLM provider: anthropic or openai")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "print results as JSON")

	root.AddCommand(
		newRunCmd(),
		newResumeCmd(),
		newApproveCmd(),
		newInspectCmd(),
	)
	return root
}

func newLogger() telemetry.Logger {
	return telemetry.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// engine bundles the wiring newScheduler produces.
type engine struct {
	scheduler *scheduler.Scheduler
}

// newScheduler assembles a Scheduler from the config file, environment
// credentials, the selected store backend, and the built-in tool catalog.
func newScheduler(ctx context.Context) (*engine, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	logger := newLogger()
	metrics := telemetry.NoopMetrics{}

	cap, err := newCapability(cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := tool.NewRegistry()
	for _, t := range []tool.Tool{
		&builtin.ReadFile{BasePath: cfg.BasePath},
		&builtin.WriteFile{BasePath: cfg.BasePath},
		&builtin.ShellExec{},
	} {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("register tool %s: %w", t.Name(), err)
		}
	}

	sessions, states, plans, runs, runLog, err := newStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	p := planner.New(cap)
	r := replanner.New(cap, registry)
	gate := approval.New()

	sched := scheduler.New(p, r, registry, cap, gate, sessions, states, plans, runs, runLog, logger, metrics)
	return &engine{scheduler: sched}, nil
}

func newCapability(cfg *config.Config, logger telemetry.Logger) (*llmcap.Capability, error) {
	creds := config.LoadCredentials(func(msg string, keyvals ...any) {
		logger.Warn(context.Background(), msg, keyvals...)
	})

	var provider llmcap.Provider
	var providerName config.ProviderName
	switch flagProvider {
	case "anthropic":
		providerName = config.ProviderAnthropic
		p, err := anthropic.NewFromAPIKey(creds.AnthropicAPIKey, anthropic.Options{})
		if err != nil {
			return nil, fmt.Errorf("construct anthropic provider: %w", err)
		}
		provider = p
	case "openai":
		providerName = config.ProviderOpenAI
		p, err := openai.NewFromAPIKey(creds.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("construct openai provider: %w", err)
		}
		provider = p
	default:
		return nil, fmt.Errorf("unknown provider %q", flagProvider)
	}

	aliases := cfg.AliasTable(providerName)
	opts := []llmcap.Option{llmcap.WithRetryPolicy(cfg.RetryPolicy())}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		opts = append(opts, llmcap.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}
	return llmcap.New(provider, aliases, opts...), nil
}

func newStores(ctx context.Context, cfg *config.Config) (session.Store, session.StateStore, plan.Store, run.Store, runlog.Store, error) {
	switch flagStore {
	case "inmem":
		return inmem.NewSessionStore(), inmem.NewStateStore(), inmem.NewPlanStore(), inmem.NewRunStore(), inmem.NewRunLogStore(), nil
	case "file":
		dir := cfg.BasePath
		if dir == "" {
			dir = "."
		}
		states, err := filestore.NewStateStore(dir)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		plans, err := filestore.NewPlanStore(dir)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		return inmem.NewSessionStore(), states, plans, inmem.NewRunStore(), inmem.NewRunLogStore(), nil
	case "mongo":
		clientOpts := options.Client().ApplyURI(flagMongo)
		client, err := mongodriver.Connect(clientOpts)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		mopts := mongostore.Options{Client: client, Database: "taskreactor"}
		sessions, err := mongostore.NewSessionStore(ctx, mopts)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		states, err := mongostore.NewStateStore(ctx, mopts)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		plans, err := mongostore.NewPlanStore(ctx, mopts)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		runs, err := mongostore.NewRunStore(ctx, mopts)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		runLog, err := mongostore.NewRunLogStore(ctx, mopts)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		return sessions, states, plans, runs, runLog, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: flagRedis})
		ropts := redisstore.Options{Client: client}
		return redisstore.NewSessionStore(client, ropts), redisstore.NewStateStore(client, ropts),
			inmem.NewPlanStore(), inmem.NewRunStore(), inmem.NewRunLogStore(), nil
	default:
		return nil, nil, nil, nil, nil, fmt.Errorf("unknown store backend %q", flagStore)
	}
}

func withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 10*time.Minute)
}
