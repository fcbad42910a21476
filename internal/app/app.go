package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"NewsSum/internal/config"
	"NewsSum/internal/domain"
	"NewsSum/internal/infrastructure/auth"
	"NewsSum/internal/infrastructure/cache"
	"NewsSum/internal/infrastructure/fetcher"
	"NewsSum/internal/infrastructure/headlines"
	"NewsSum/internal/infrastructure/httpapi"
	"NewsSum/internal/infrastructure/llm"
	"NewsSum/internal/infrastructure/parser"
	"NewsSum/internal/infrastructure/scheduler"
	"NewsSum/internal/infrastructure/storage"
	"NewsSum/internal/logging"
	"NewsSum/internal/metrics"
	"NewsSum/internal/ports"
	"NewsSum/internal/scanner"
	"NewsSum/internal/usecase"
	"NewsSum/internal/validation"
)

const defaultShutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pool      *pgxpool.Pool
	seen      *cache.SeenKeys
	scheduler *usecase.Scheduler
	cron      *scheduler.CronScheduler
	server    *httpapi.Server
}

// New connects to the backing services and builds every component.
// Close must be called when New succeeds.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := storage.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &Application{cfg: cfg, logger: baseLogger, pool: pool}

	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	log := a.logger
	cfg := a.cfg
	m := metrics.New()
	validator := validation.New()

	var seen ports.SeenKeyCache
	if cfg.Redis.Addr != "" {
		c, err := cache.NewSeenKeys(ctx, cfg.Redis)
		if err != nil {
			log.Warn("seen-key cache disabled", "error", err)
		} else {
			a.seen = c
			seen = c
		}
	}

	generator, err := llm.NewGeminiClient(ctx, cfg.Gemini)
	if err != nil {
		return err
	}

	registry := scanner.NewRegistry()
	registry.Register(headlines.NewNewsData(nil, cfg.Sources.NewsData, log.With("component", "source.newsdata")))
	registry.Register(headlines.NewGNews(nil, cfg.Sources.GNews, log.With("component", "source.gnews")))
	for _, feed := range cfg.Sources.RSS {
		registry.Register(headlines.NewRSS(nil, feed, log.With("component", "source.rss", "feed", feed.Name)))
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher:    fetcher.New(cfg.Fetcher, log.With("component", "fetcher")),
		Extractor:  parser.NewExtractor(log.With("component", "extractor")),
		Summarizer: usecase.NewSummarizer(generator, m, log.With("component", "summarizer")),
		Metrics:    m,
		Logger:     log.With("component", "pipeline"),
	})

	articles := storage.NewArticleRepository(a.pool, log.With("component", "storage"))
	persister := usecase.NewPersister(usecase.PersisterDeps{
		Store:     articles,
		Cache:     seen,
		Validator: validator,
		Metrics:   m,
		Logger:    log.With("component", "persist"),
	})

	jobs := make([]*usecase.IngestJob, 0, len(cfg.AllJobs()))
	for _, jc := range cfg.AllJobs() {
		source, err := registry.Resolve(jc.Source)
		if err != nil {
			return fmt.Errorf("job %s: %w (known: %v)", jc.Name, err, registry.Names())
		}
		jobs = append(jobs, usecase.NewIngestJob(usecase.IngestJobDeps{
			Spec:      jobSpec(jc),
			Source:    source,
			Pipeline:  pipeline,
			Persister: persister,
			Metrics:   m,
			Logger:    log.With("component", "job"),
		}))
	}
	a.cron = scheduler.NewCronScheduler(log.With("component", "scheduler"))
	a.scheduler = usecase.NewScheduler(a.cron, jobs, log.With("component", "scheduler"))

	authDeps := usecase.AuthDeps{
		Users:  storage.NewUserRepository(a.pool),
		Hasher: auth.NewBcryptHasher(0),
		Tokens: auth.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry),
		Logger: log.With("component", "auth"),
	}
	if cfg.Auth.Apple.Configured() {
		apple, err := auth.NewAppleVerifier(ctx, cfg.Auth.Apple, nil, log)
		if err != nil {
			log.Warn("apple sign in disabled", "error", err)
		} else {
			authDeps.Apple = apple
		}
	}

	a.server = httpapi.NewServer(cfg.HTTP, httpapi.Deps{
		Articles:  cache.NewArticles(articles, 0, 0),
		Auth:      usecase.NewAuthService(authDeps),
		Jobs:      a.scheduler,
		Health:    a.pool,
		Metrics:   m.Handler(),
		Validator: validator,
		Logger:    log,
	})
	return nil
}

// Serve runs the scheduler and the HTTP server until ctx is cancelled or the
// server fails, then shuts both down.
func (a *Application) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// Runs are drained by Stop, not cancelled with ctx.
	if err := a.scheduler.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	for job, next := range a.cron.NextRuns() {
		a.logger.Info("next run", "job", job, "at", next)
	}

	g.Go(a.server.Start)
	g.Go(func() error {
		<-gctx.Done()

		timeout := a.cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		a.logger.Info("shutting down")
		return errors.Join(
			a.server.Shutdown(shutdownCtx),
			a.scheduler.Stop(shutdownCtx),
		)
	})

	return g.Wait()
}

// Ingest runs one job synchronously.
func (a *Application) Ingest(ctx context.Context, job string) (domain.RunReport, error) {
	return a.scheduler.RunNow(ctx, job)
}

// Jobs lists the configured job schedules.
func (a *Application) Jobs() []domain.JobSpec {
	return a.scheduler.Jobs()
}

// Close releases connections.
func (a *Application) Close() {
	if a.seen != nil {
		if err := a.seen.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// Migrate applies the embedded schema; only the database DSN is required.
func Migrate(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Database.DSN == "" {
		return errors.New("database dsn is not set")
	}

	pool, err := storage.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := storage.Migrate(ctx, pool); err != nil {
		return err
	}
	log.Info("schema applied")
	return nil
}

// ResolveJob checks name against the configured jobs without touching any
// backing service. An empty name picks the first job.
func ResolveJob(cfg config.Config, name string) (string, error) {
	if name == "" {
		jobs := cfg.AllJobs()
		if len(jobs) == 0 {
			return "", errors.New("no jobs configured")
		}
		return jobs[0].Name, nil
	}
	if _, ok := cfg.FindJob(name); !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownJob, name)
	}
	return name, nil
}

func jobSpec(jc config.JobConfig) domain.JobSpec {
	return domain.JobSpec{
		Name:         jc.Name,
		Source:       jc.Source,
		Cron:         jc.Cron,
		Timezone:     jc.Timezone,
		MisfireGrace: jc.MisfireGrace,
		Window:       jc.Window,
	}
}
