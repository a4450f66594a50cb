package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/codesage/codesage/internal/adapter/cli"
	githubadapter "github.com/codesage/codesage/internal/adapter/github"
	"github.com/codesage/codesage/internal/adapter/llm"
	"github.com/codesage/codesage/internal/adapter/llm/anthropic"
	"github.com/codesage/codesage/internal/adapter/llm/openai"
	"github.com/codesage/codesage/internal/adapter/llm/static"
	"github.com/codesage/codesage/internal/adapter/store/sqlite"
	"github.com/codesage/codesage/internal/api"
	"github.com/codesage/codesage/internal/config"
	"github.com/codesage/codesage/internal/queue"
	"github.com/codesage/codesage/internal/usecase/analysis"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	// Secrets may live in a local .env during development
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "codesage",
		EnvPrefix:   "CODESAGE",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	service, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	root := cli.NewRootCommand(cli.Dependencies{
		Server:  service,
		Version: version,
	})

	return root.ExecuteContext(ctx)
}

// service owns every long-lived component and knows how to run and stop them.
type service struct {
	cfg      config.Config
	store    *sqlite.Store
	producer *queue.Producer
	consumer *queue.Consumer
	server   *api.Server
	orch     *analysis.Orchestrator
}

func buildService(cfg config.Config) (*service, error) {
	store, err := sqlite.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	retry := cfg.HTTP.RetryConfig()

	var tokenCache *githubadapter.TokenCache
	if cfg.GitHub.Configured() {
		tokenCache, err = githubadapter.NewTokenCache(
			cfg.GitHub.AppID, cfg.GitHub.PrivateKeyPath, cfg.GitHub.InstallationID)
		if err != nil {
			return nil, fmt.Errorf("github app auth failed: %w", err)
		}
		if cfg.GitHub.BaseURL != "" {
			tokenCache.SetBaseURL(cfg.GitHub.BaseURL)
		}
	} else {
		log.Printf("[WARN] github app not configured, running in mock mode")
	}

	sourceControl, err := githubadapter.NewClient(
		tokenCache, cfg.GitHub.BaseURL, retry, cfg.HTTP.GitHubTimeoutDuration())
	if err != nil {
		return nil, fmt.Errorf("github client init failed: %w", err)
	}

	gateway := llm.NewGateway(
		buildProviders(cfg.Providers), retry, cfg.HTTP.ProviderTimeoutDuration())

	orch := analysis.NewOrchestrator(analysis.Deps{
		Store:         store,
		SourceControl: sourceControl,
		Analyzer:      gateway,
		Format:        githubadapter.FormatComment,
	})

	producer, err := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, fmt.Errorf("queue producer init failed: %w", err)
	}

	consumer, err := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	if err != nil {
		return nil, fmt.Errorf("queue consumer init failed: %w", err)
	}

	return &service{
		cfg:      cfg,
		store:    store,
		producer: producer,
		consumer: consumer,
		server:   api.NewServer(producer, store),
		orch:     orch,
	}, nil
}

// buildProviders assembles the fixed provider chain. The mock provider is
// always last so analysis works in environments without API keys.
func buildProviders(cfg config.ProvidersConfig) []llm.Provider {
	openaiProvider := openai.NewProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	if cfg.OpenAI.BaseURL != "" {
		openaiProvider.SetBaseURL(cfg.OpenAI.BaseURL)
	}

	var anthropicOpts []option.RequestOption
	if cfg.Anthropic.BaseURL != "" {
		anthropicOpts = append(anthropicOpts, option.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	anthropicProvider := anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model, anthropicOpts...)

	return []llm.Provider{openaiProvider, anthropicProvider, static.NewProvider()}
}

// Serve runs the HTTP surface and the analysis worker until the context is
// cancelled, then shuts both down.
func (s *service) Serve(ctx context.Context) error {
	log.Printf("[INFO] codesage %s starting on %s", version, s.cfg.Server.Addr)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := s.consumer.Run(groupCtx, s.orch.Handle)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		err := s.server.Start(s.cfg.Server.Addr)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// Close releases queue connections and the store.
func (s *service) Close() {
	s.producer.Close()
	if err := s.consumer.Close(); err != nil {
		log.Printf("[ERROR] consumer close failed: %v", err)
	}
	if err := s.store.Close(); err != nil {
		log.Printf("[ERROR] store close failed: %v", err)
	}
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home+"/.config/codesage")
	}
	return paths
}
