package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github/itish2003/ragqa/answer"
	"github/itish2003/ragqa/config"
	"github/itish2003/ragqa/controller"
	"github/itish2003/ragqa/conversation"
	"github/itish2003/ragqa/embedding"
	"github/itish2003/ragqa/entertainment"
	"github/itish2003/ragqa/intents"
	"github/itish2003/ragqa/llm"
	"github/itish2003/ragqa/logging"
	"github/itish2003/ragqa/metrics"
	"github/itish2003/ragqa/registry"
	"github/itish2003/ragqa/retrieval"
	"github/itish2003/ragqa/services"
	"github/itish2003/ragqa/vectorstore"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := services.InitPDFLicense(cfg.PDF.LicenseKey.Value()); err != nil {
		logger.Warn("PDF extraction may be limited", zap.Error(err))
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey.Value(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client (is GEMINI_API_KEY set?): %w", err)
	}
	logger.Info("connected to Google Gemini", zap.String("model", cfg.Gemini.Model))

	m := metrics.New(prometheus.DefaultRegisterer)

	baseEmbedder, err := embedding.New(cfg.Embedding, httpClient, geminiClient)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	embedder, err := embedding.NewCached(baseEmbedder, cfg.Embedding.CacheSize, m, logger)
	if err != nil {
		return fmt.Errorf("failed to create embedding cache: %w", err)
	}

	store, err := vectorstore.New(ctx, cfg.VectorStore, embedder.Dimension(), logger)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer store.Close()
	logger.Info("vector store ready", zap.String("provider", store.Name()))

	reg, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("failed to open file registry: %w", err)
	}
	defer reg.Close()

	files, err := services.NewFileActions(cfg.Server.UploadDir)
	if err != nil {
		return err
	}
	scraper := services.NewWebScraper(nil, cfg.Web, logger)
	generator := llm.NewGemini(geminiClient, cfg.Gemini, services.GetSystemPrompt(), logger)

	var lookup services.EntertainmentLookup
	if cfg.Entertainment.Enabled {
		ent, err := entertainment.New(cfg.Entertainment, nil, entertainment.Options{}, logger)
		if err != nil {
			return fmt.Errorf("failed to set up entertainment lookup: %w", err)
		}
		lookup = ent
		logger.Info("entertainment answers enabled")
	}

	sessions := conversation.NewStore(cfg.Conversation.MaxTurns, cfg.Retrieval.ContextChars)
	retriever := retrieval.NewRetriever(embedder, store, retrieval.Options{
		TopK:       cfg.Retrieval.TopK,
		MaxSources: cfg.Retrieval.MaxSources,
	}, logger)
	limits := answer.LimitsFromConfig(cfg.Answer)

	ragService := services.NewRAGService(
		intents.NewClassifier(),
		retriever,
		generator,
		answer.NewStreamer(limits.Overflow, logger),
		sessions,
		lookup,
		m,
		services.RAGOptions{Limits: limits, HistoryTurns: cfg.Conversation.HistoryTurns},
		logger,
	)
	responder := services.NewResponder(ragService, logger)
	indexer := services.NewIndexingService(
		embedder, store, reg, files, scraper, generator, sessions, m,
		services.IndexingOptionsFromConfig(cfg.Ingest, cfg.Server),
		logger,
	)

	ragController := controller.NewRAGController(responder, ragService, indexer, store, version, cfg.Server.MaxUploadMB, logger)

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-ID")
		c.Header("Access-Control-Expose-Headers", "X-Session-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", ragController.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	ragController.Register(router.Group("/api/v1"))

	if cfg.Server.WatchUploads {
		go func() {
			indexer.ScanAndIndexDirectory(ctx, files.UploadDir)
			indexer.WatchDirectory(ctx, files.UploadDir)
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("health", "/health"),
			zap.String("api", "/api/v1"))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
