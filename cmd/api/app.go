package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/bitumen-hub/catalog-assistant/internal/anthropic"
	"github.com/bitumen-hub/catalog-assistant/internal/api/handlers"
	"github.com/bitumen-hub/catalog-assistant/internal/api/middleware"
	"github.com/bitumen-hub/catalog-assistant/internal/catalog"
	"github.com/bitumen-hub/catalog-assistant/internal/chunker"
	"github.com/bitumen-hub/catalog-assistant/internal/config"
	"github.com/bitumen-hub/catalog-assistant/internal/googleai"
	"github.com/bitumen-hub/catalog-assistant/internal/jobs"
	"github.com/bitumen-hub/catalog-assistant/internal/llm"
	"github.com/bitumen-hub/catalog-assistant/internal/observability"
	"github.com/bitumen-hub/catalog-assistant/internal/openai"
	"github.com/bitumen-hub/catalog-assistant/internal/querynorm"
	"github.com/bitumen-hub/catalog-assistant/internal/repository"
	"github.com/bitumen-hub/catalog-assistant/internal/service"
	"github.com/bitumen-hub/catalog-assistant/internal/vectorstore"
	"github.com/bitumen-hub/catalog-assistant/internal/workers"
	"github.com/bitumen-hub/catalog-assistant/pkg/cache"
	"github.com/bitumen-hub/catalog-assistant/pkg/embeddings"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	message        *service.MessagePublisherManager
	listener       *catalog.Listener
	listenerDone   chan struct{} // closed when the listener goroutine returns; nil until Run starts it
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

var (
	errUnsupportedEmbeddingProvider = errors.New("unsupported embedding provider")
	errUnsupportedLLMProvider       = errors.New("unsupported llm provider")
)

const (
	riverQueueDepthInterval = 15 * time.Second
	queryEmbeddingCacheSize = 1000
)

// newEmbeddingClient returns the embedder named by EMBEDDING_PROVIDER.
func newEmbeddingClient(ctx context.Context, cfg *config.Config) (service.EmbeddingClient, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		return openai.NewClient(cfg.EmbeddingProviderAPIKey,
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithBaseURL(cfg.EmbeddingBaseURL),
			openai.WithDimensions(cfg.EmbeddingDimensions),
		), nil
	case "google":
		client, err := googleai.NewClient(ctx, cfg.EmbeddingProviderAPIKey,
			googleai.WithModel(cfg.EmbeddingModel),
			googleai.WithDimensions(cfg.EmbeddingDimensions),
		)
		if err != nil {
			return nil, fmt.Errorf("create google embedding client: %w", err)
		}

		return client, nil
	case "local":
		slog.Warn("using local hashing embedder; semantic quality is limited")

		return embeddings.NewHashingClient(cfg.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedEmbeddingProvider, cfg.EmbeddingProvider)
	}
}

// newCompleter returns the language model named by LLM_PROVIDER.
func newCompleter(cfg *config.Config) (llm.Completer, error) {
	if cfg.LLMAPIKey == "" {
		slog.Warn("LLM_API_KEY is empty; questions will be answered with an error message")
	}

	switch cfg.LLMProvider {
	case "openai":
		return openai.NewChatClient(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMMaxRetries), nil
	case "anthropic":
		return anthropic.NewClient(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMMaxRetries), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedLLMProvider, cfg.LLMProvider)
	}
}

// newVectorStore builds and initializes the store named by VECTOR_STORE.
func newVectorStore(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (vectorstore.Store, error) {
	var store vectorstore.Store

	if cfg.VectorStore == "memory" {
		slog.Warn("using in-memory vector store; the index is lost on restart")

		store = vectorstore.NewMemoryStore(cfg.EmbeddingDimensions)
	} else {
		store = vectorstore.NewPostgresStore(db, cfg.VectorCollection, cfg.EmbeddingDimensions)
	}

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	return store, nil
}

// setupMetrics creates the meter provider and collectors when metrics are enabled.
// The returned handler is non-nil only for the prometheus exporter.
func setupMetrics(cfg *config.Config) (*sdkmetric.MeterProvider, *observability.Metrics, http.Handler, error) {
	mp, promHandler, err := observability.NewMeterProvider(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		return nil, nil, nil, nil
	}

	metrics, err := observability.NewMetrics(mp.Meter("catalog-assistant"))
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return mp, metrics, promHandler, nil
}

// components groups the services handlers are built from.
type components struct {
	search   *service.HybridSearch
	rag      *service.RAGService
	ledger   *service.FeedbackLedger
	indexer  *service.ProductIndexer
	sync     *service.CatalogSyncProvider
	messages *service.MessagePublisherManager
}

// NewApp builds and wires all components. It does not start the HTTP server, River,
// or the catalog listener; call Run for that.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (app *App, err error) {
	var (
		meterProvider *sdkmetric.MeterProvider
		metrics       *observability.Metrics
		promHandler   http.Handler
		m             observability.Metrics
	)

	if cfg.OtelMetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		meterProvider, metrics, promHandler, err = setupMetrics(cfg)
		if err != nil {
			return nil, err
		}
	}

	if metrics != nil {
		m = *metrics
	}

	var tracerProvider *sdktrace.TracerProvider

	if cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(cfg)
		if err != nil {
			_ = shutdownObservability(context.Background(), nil, meterProvider)

			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
	}

	defer func() {
		if err != nil {
			if obsErr := shutdownObservability(context.Background(), tracerProvider, meterProvider); obsErr != nil {
				slog.Error("shutdown observability after startup error", "error", obsErr)
			}
		}
	}()

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	embedder, err := newEmbeddingClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	completer, err := newCompleter(cfg)
	if err != nil {
		return nil, err
	}

	store, err := newVectorStore(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	productsRepo := repository.NewProductsRepository(db)

	indexer := service.NewProductIndexer(service.ProductIndexerParams{
		Products: productsRepo,
		Store:    store,
		Embedder: embedder,
		Chunker:  chunker.New(chunker.WithChunkSize(cfg.ChunkSize), chunker.WithOverlap(cfg.ChunkOverlap)),
		Limiter:  rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), 1),
		StatsTTL: cfg.IndexStatsCacheTTL,
		Metrics:  m.Sync,
		Logger:   slog.Default(),
	})

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewProductReindexWorker(indexer, m.Sync))

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			service.EmbeddingsQueueName: {MaxWorkers: cfg.SyncMaxConcurrent},
		},
		Workers:      riverWorkers,
		ErrorHandler: jobs.NewErrorHandler(m.Sync),
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	messages := service.NewMessagePublisherManager(
		cfg.MessagePublisherBufferSize, cfg.MessagePublisherPerEventTimeout, m.Events,
	)
	syncProvider := service.NewCatalogSyncProvider(riverClient, productsRepo, service.EmbeddingsQueueName, m.Sync)
	messages.RegisterProvider(syncProvider)

	queryCache, err := cache.NewLoaderCache[string, []float32](queryEmbeddingCacheSize, querynorm.Basic)
	if err != nil {
		messages.Shutdown()

		return nil, fmt.Errorf("create query embedding cache: %w", err)
	}

	semantic := service.NewSemanticSearch(service.SemanticSearchParams{
		Embedder:     embedder,
		Store:        store,
		QueryCache:   queryCache,
		CacheMetrics: m.Cache,
		Logger:       slog.Default(),
	})

	ledger := service.NewFeedbackLedger(repository.NewLedgerRepository(db), m.RAG, slog.Default())

	comps := components{
		search: service.NewHybridSearch(service.HybridSearchParams{
			Lexical:        service.NewLexicalSearch(productsRepo, cfg.SearchLexicalLimit),
			Semantic:       semantic,
			SemanticLimit:  cfg.SearchSemanticLimit,
			ScoreThreshold: cfg.SearchScoreThreshold,
			Metrics:        m.Search,
			Logger:         slog.Default(),
		}),
		rag: service.NewRAGService(service.RAGServiceParams{
			Retriever:       semantic,
			Completer:       completer,
			Ledger:          ledger,
			TopK:            cfg.RAGTopK,
			ScoreThreshold:  cfg.RAGScoreThreshold,
			MaxContextChars: cfg.RAGMaxContextChars,
			LLMTimeout:      cfg.LLMTimeout,
			Metrics:         m.RAG,
			Logger:          slog.Default(),
		}),
		ledger:   ledger,
		indexer:  indexer,
		sync:     syncProvider,
		messages: messages,
	}

	var listener *catalog.Listener
	if cfg.CatalogListenEnabled {
		listener = catalog.NewListener(db, cfg.CatalogListenChannel, messages, slog.Default())
	}

	return &App{
		cfg:            cfg,
		db:             db,
		server:         newHTTPServer(cfg, db, comps, m.API, promHandler, meterProvider, tracerProvider),
		river:          riverClient,
		message:        messages,
		listener:       listener,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
	}, nil
}

// newHTTPServer builds the HTTP server (no auth on /health and /metrics, API key on /v1/).
// Handler chain: RequestID -> otelhttp -> Metrics -> Logging -> mux.
func newHTTPServer(
	cfg *config.Config,
	db *pgxpool.Pool,
	c components,
	apiMetrics observability.APIMetrics,
	promHandler http.Handler,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	health := handlers.NewHealthHandler(db)
	search := handlers.NewSearchHandler(c.search, c.ledger)
	questions := handlers.NewQuestionHandler(c.rag)
	feedback := handlers.NewFeedbackHandler(c.ledger)
	index := handlers.NewIndexHandler(c.indexer, c.sync, c.messages)

	public := http.NewServeMux()
	public.HandleFunc("GET /health", health.Check)

	if promHandler != nil {
		public.Handle("GET /metrics", promHandler)
	}

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/search", search.Search)
	protected.HandleFunc("POST /v1/questions", questions.Ask)
	protected.HandleFunc("PATCH /v1/responses/{id}/message", feedback.AttachMessage)
	protected.HandleFunc("POST /v1/feedback", feedback.Submit)
	protected.HandleFunc("GET /v1/feedback/stats", feedback.Stats)
	protected.HandleFunc("GET /v1/feedback/dislikes", feedback.Dislikes)
	protected.HandleFunc("GET /v1/index/stats", index.Stats)
	protected.HandleFunc("POST /v1/index/products/{id}", index.ReindexProduct)
	protected.HandleFunc("POST /v1/index/rebuild", index.Rebuild)
	protected.HandleFunc("POST /v1/catalog/events", index.CatalogEvent)

	var protectedHandler http.Handler = protected
	protectedHandler = middleware.MaxBody(cfg.MaxRequestBodyBytes, apiMetrics)(protectedHandler)
	protectedHandler = middleware.Auth(cfg.APIKey)(protectedHandler)

	mux := http.NewServeMux()
	mux.Handle("/v1/", protectedHandler)
	mux.Handle("/", public)

	otelOpts := []otelhttp.Option{
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	// Logging runs inside otelhttp so access logs carry trace_id/span_id.
	inner := middleware.Logging(slog.Default())(mux)
	inner = middleware.Metrics(apiMetrics)(inner)
	handler := otelhttp.NewHandler(inner, "catalog-assistant", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout = 15 * time.Second
		// Questions wait for the model; leave room beyond LLM_TIMEOUT.
		writeSlack  = 15 * time.Second
		idleTimeout = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: cfg.LLMTimeout + writeSlack,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts River, the catalog listener, and the HTTP server, then blocks until ctx is
// cancelled or a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()

	if a.metrics != nil && a.metrics.Events != nil {
		go runRiverQueueDepthPoller(bgCtx, a.db, a.metrics.Events)
	}

	if err := a.river.Start(bgCtx); err != nil {
		return fmt.Errorf("river: %w", err)
	}

	if a.listener != nil {
		a.listenerDone = make(chan struct{})

		go func() {
			defer close(a.listenerDone)

			if err := a.listener.Run(bgCtx); err != nil {
				slog.Error("catalog listener stopped", "error", err)
			}
		}()
	} else {
		slog.Info("catalog listener disabled (CATALOG_LISTEN_ENABLED=false)")
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// runRiverQueueDepthPoller periodically updates the reindex queue depth gauge.
func runRiverQueueDepthPoller(ctx context.Context, db *pgxpool.Pool, eventMetrics observability.EventMetrics) {
	ticker := time.NewTicker(riverQueueDepthInterval)
	defer ticker.Stop()

	update := func() {
		var count int

		err := db.QueryRow(ctx,
			`SELECT COUNT(*) FROM river_job WHERE queue = $1 AND state IN ($2, $3, $4)`,
			service.EmbeddingsQueueName,
			rivertype.JobStateAvailable, rivertype.JobStateRetryable, rivertype.JobStateScheduled,
		).Scan(&count)
		if err != nil {
			if ctx.Err() == nil {
				slog.WarnContext(ctx, "river queue depth poll failed", "error", err)
			}

			return
		}

		eventMetrics.SetRiverQueueDepth(count)
	}

	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
			if first == nil {
				first = err
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// Shutdown stops the server, drains the publisher into River, then stops River.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.waitListener(ctx)
		a.message.Shutdown()

		if stopErr := a.river.Stop(ctx); stopErr != nil {
			slog.Error("river stop during server shutdown", "error", stopErr)
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	// The listener publishes into the manager, so it must be gone before the manager closes.
	a.waitListener(ctx)

	// Buffered notifications become jobs before River stops.
	a.message.Shutdown()

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}

// waitListener blocks until the catalog listener goroutine has returned or ctx expires.
// Run cancels the listener's context on return, so Shutdown only waits for the exit.
func (a *App) waitListener(ctx context.Context) {
	if a.listenerDone == nil {
		return
	}

	select {
	case <-a.listenerDone:
	case <-ctx.Done():
		slog.Warn("catalog listener did not stop before shutdown deadline")
	}
}
