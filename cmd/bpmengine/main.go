// Command bpmengine runs the process orchestration engine: the polling
// dispatcher that claims due work items plus the operational HTTP
// surface (health, readiness, metrics, manual submission).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/bpmflow/pkg/agentdispatch"
	"github.com/codeready-toolchain/bpmflow/pkg/compensation"
	"github.com/codeready-toolchain/bpmflow/pkg/config"
	"github.com/codeready-toolchain/bpmflow/pkg/database"
	"github.com/codeready-toolchain/bpmflow/pkg/dispatcher"
	"github.com/codeready-toolchain/bpmflow/pkg/httpapi"
	"github.com/codeready-toolchain/bpmflow/pkg/masking"
	"github.com/codeready-toolchain/bpmflow/pkg/mcp"
	"github.com/codeready-toolchain/bpmflow/pkg/notify"
	"github.com/codeready-toolchain/bpmflow/pkg/reasoning"
	"github.com/codeready-toolchain/bpmflow/pkg/resolver"
	"github.com/codeready-toolchain/bpmflow/pkg/scriptexec"
	"github.com/codeready-toolchain/bpmflow/pkg/store"
	"github.com/codeready-toolchain/bpmflow/pkg/streaming"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	podID := flag.String("pod-id", getEnv("POD_ID", "bpmengine-0"), "Replica identity used for claim ownership")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "debug"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting bpmengine, pod_id=%s", *podID)

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL database")

	broadcaster := newBroadcaster()
	if broadcaster.Client != nil {
		defer broadcaster.Client.Close()
	}

	maskingService := masking.NewService(cfg.MCPServerRegistry)
	mcpFactory := mcp.NewClientFactory(cfg.MCPServerRegistry, maskingService)
	toolIndex := mcp.NewToolIndex(mcpFactory, cfg.MCPServerRegistry)
	introspector := mcp.NewToolIntrospector()

	reasoningClient, err := newReasoningClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize reasoning client: %v", err)
	}

	items := store.New(dbClient.Client)
	chats := store.NewChatStore(dbClient.Client)
	insts := store.NewProcInstStore(dbClient.Client)
	defs := store.NewProcDefStore(dbClient.Client)
	events := store.NewEventLogStore(dbClient.Client)
	artifacts := store.NewCompensationStore(dbClient.Client)

	res := &resolver.Resolver{
		Defs:    defs,
		Insts:   insts,
		Items:   items,
		Chats:   chats,
		Scripts: scriptexec.New(),
		Notify:  newNotifier(),
	}

	planner := &compensation.Planner{
		Defs:        defs,
		Events:      events,
		Artifacts:   artifacts,
		Items:       items,
		Synthesizer: &reasoning.Synthesizer{Client: reasoningClient},
		Tools:       toolIndex,
	}
	agentDispatcher := &agentdispatch.Dispatcher{
		Items:      items,
		Chats:      chats,
		Requests:   &reasoning.RequestBuilder{Client: reasoningClient},
		Channel:    agentdispatch.NewHTTPChannel(getEnv("EXECUTION_SERVICE_URL", "http://localhost:9000")),
		Response:   &reasoning.ResponseNormalizer{Client: reasoningClient},
		Introspect: introspector,
	}

	route := &routerHandler{
		items:        items,
		agents:       cfg.AgentRegistry,
		llmAdvisor:   &reasoning.Advisor{Client: reasoningClient},
		llmResolver:  res,
		llmDefs:      defs,
		llmPublisher: broadcaster,
		dispatch:     agentDispatcher,
	}

	queueCfg := dispatcher.Config{
		WorkerCount:        cfg.Queue.WorkerCount,
		ClaimBatchSize:     cfg.Queue.ClaimBatchSize,
		PollInterval:       cfg.Queue.PollInterval,
		PollIntervalJitter: cfg.Queue.PollIntervalJitter,
		ItemTimeout:        cfg.Queue.ItemTimeout,
		MaxRetries:         cfg.Queue.MaxRetries,
		StaleClaimAge:      cfg.Queue.StaleClaimAge,
		CleanupInterval:    cfg.Queue.CleanupInterval,
	}

	d := dispatcher.New(*podID, items, queueCfg, route)
	if broadcaster.Client != nil {
		wake, cancelWake, err := broadcaster.SubscribeWake(ctx)
		if err != nil {
			log.Printf("wake channel subscription failed, polling on interval only: %v", err)
		} else {
			defer cancelWake()
			d.SetWakeChannel(wake)
		}
	}
	d.Start(ctx)

	api := &httpapi.Server{
		DB:       dbClient,
		Insts:    insts,
		Items:    items,
		Wake:     broadcaster,
		Planner:  planner,
		TenantID: getEnv("DEFAULT_TENANT_ID", "default"),
	}
	srv := &http.Server{
		Addr:    ":" + httpPort,
		Handler: api.Router(),
	}
	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received, stopping dispatcher")
	d.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("bpmengine stopped")
}

// newBroadcaster connects to Redis if REDIS_ADDR is configured; an
// unset REDIS_ADDR yields a Broadcaster with a nil Client, which makes
// every streaming call a no-op rather than a startup failure, since
// cross-replica log fan-out and wake notification are an optimization,
// not a correctness requirement, for a single-replica deployment.
func newBroadcaster() *streaming.Broadcaster {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return streaming.NewBroadcaster(nil)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("redis ping failed, continuing without streaming: %v", err)
		return streaming.NewBroadcaster(nil)
	}
	log.Println("connected to Redis for log fan-out and cross-replica wake")
	return streaming.NewBroadcaster(rdb)
}

func newReasoningClient(cfg *config.Config) (*reasoning.Client, error) {
	providerName := cfg.Defaults.LLMProvider
	provider, err := cfg.GetLLMProvider(providerName)
	if err != nil {
		return nil, fmt.Errorf("resolve default LLM provider %q: %w", providerName, err)
	}
	apiKey := os.Getenv(provider.APIKeyEnv)
	return reasoning.New(reasoning.Config{
		APIKey:    apiKey,
		Model:     provider.Model,
		MaxTokens: int64(provider.MaxToolResultTokens),
	})
}

func newNotifier() *notify.Mailer {
	port := 587
	if v := os.Getenv("SMTP_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &port)
	}
	return notify.New(notify.SMTPConfig{
		Host:     getEnv("SMTP_HOST", "localhost"),
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	})
}
