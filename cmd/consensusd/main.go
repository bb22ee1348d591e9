// Command consensusd is the consensus daemon's process entrypoint: it
// loads configuration, wires every component (cache, gateway, transport,
// pipeline, event bus, knowledge repository, tracing, metrics), and serves
// the WebSocket session endpoint plus the REST surface described in §6.
//
// Usage:
//
//	consensusd -config consensus.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/hivetechs-collective/Hive-sub013/internal/cache"
	"github.com/hivetechs-collective/Hive-sub013/internal/config"
	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
	"github.com/hivetechs-collective/Hive-sub013/internal/contextbuilder"
	"github.com/hivetechs-collective/Hive-sub013/internal/eventbus"
	"github.com/hivetechs-collective/Hive-sub013/internal/gateway"
	"github.com/hivetechs-collective/Hive-sub013/internal/knowledge"
	"github.com/hivetechs-collective/Hive-sub013/internal/knowledge/jsonfile"
	"github.com/hivetechs-collective/Hive-sub013/internal/knowledge/memory"
	"github.com/hivetechs-collective/Hive-sub013/internal/modeltransport"
	"github.com/hivetechs-collective/Hive-sub013/internal/session"
	"github.com/hivetechs-collective/Hive-sub013/internal/telemetry"
	loggingconfig "github.com/hivetechs-collective/Hive-sub013/pkg/config"
	"github.com/hivetechs-collective/Hive-sub013/runtime/events"
	"github.com/hivetechs-collective/Hive-sub013/runtime/logger"
	prommetrics "github.com/hivetechs-collective/Hive-sub013/runtime/metrics/prometheus"
	"github.com/hivetechs-collective/Hive-sub013/runtime/version"
)

// exit codes per §6: 0 success, 1 transport/setup failure, 2 authorization
// unrecoverable (a license key that the gateway itself refuses at startup).
const (
	exitOK           = 0
	exitSetupFailure = 1
	exitAuthDenied   = 2
)

func main() {
	if err := run(); err != nil {
		logger.Error("consensusd: fatal", "error", err)
		var authErr *authStartupError
		if errors.As(err, &authErr) {
			os.Exit(exitAuthDenied)
		}
		os.Exit(exitSetupFailure)
	}
	os.Exit(exitOK)
}

// authStartupError wraps a license-key validation failure discovered
// during startup, so main can map it onto exit code 2 instead of 1.
type authStartupError struct{ cause error }

func (e *authStartupError) Error() string { return "authorization: " + e.cause.Error() }
func (e *authStartupError) Unwrap() error { return e.cause }

func run() error {
	configPath := flag.String("config", "", "path to the daemon's YAML configuration file")
	flag.Parse()

	if err := logger.Configure(loggingSpec()); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	version.LogStartup()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, err := telemetry.NewTracerProvider(ctx, "consensusd")
	if err != nil {
		return fmt.Errorf("build tracer provider: %w", err)
	}
	otel.SetTracerProvider(tp)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("consensusd: tracer shutdown failed", "error", err)
		}
	}()

	var replayGuard *redis.Client
	if cfg.Cache.RedisAddr != "" {
		replayGuard = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
	}

	gw := gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.LicenseKey)
	if replayGuard != nil {
		gw = gw.WithReplayGuard(replayGuard)
	}

	if _, err := gw.ValidateLicenseKey(ctx); err != nil {
		if gateway.IsAuthenticationFailed(err) {
			return &authStartupError{cause: err}
		}
		logger.Warn("consensusd: license validation failed at startup, continuing (per-conversation checks still apply)", "error", err)
	}

	transport := modeltransport.New(cfg.Model.ToConfig())

	versionedCache, err := config.LoadCache(cfg.Cache.ConfigPath, replayGuard, buildVersion())
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	bus, err := eventbus.Build(eventbus.Config{
		EnableFileWatching: cfg.Bus.EnableFileWatching,
		Backpressure:       eventbus.PolicyPauseWatcher,
	})
	if err != nil {
		return fmt.Errorf("build event bus: %w", err)
	}
	defer func() { _ = bus.Close() }()

	recorder := buildRecorder(cfg.Knowledge.BasePath, bus)

	builder := contextbuilder.New(time.Local)

	// observabilityBus carries pipeline-internal events (stage/run timing,
	// failures) to the Prometheus listener — separate from eventbus.Bus,
	// which carries subscription-facing resource events to session clients.
	observabilityBus := events.NewEventBus()
	observabilityBus.SubscribeAll(prommetrics.NewMetricsListener().Listener())

	pipeline := consensus.New(consensus.Config{
		Gateway:        gw,
		Transport:      transport,
		ContextBuilder: builder,
		Bus:            observabilityBus,
		Cache:          versionedCache,
		Recorder:       recorder,
	})

	exporter := prommetrics.NewExporter(cfg.Server.MetricsAddr)
	go func() {
		if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("consensusd: metrics exporter failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = exporter.Shutdown(shutdownCtx)
	}()

	stopStats := pollStats(ctx, versionedCacheStats(versionedCache), bus)
	defer stopStats()

	profiles := cfg.ProfileMap()
	resolveProfile := func(name string) (consensus.Profile, error) {
		if name == "" {
			name = cfg.DefaultTag
		}
		p, ok := profiles[name]
		if !ok {
			return consensus.Profile{}, fmt.Errorf("unknown profile %q", name)
		}
		return p, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/session", &session.Handler{Pipeline: pipeline, ResolveProfile: resolveProfile})
	mux.HandleFunc("/api/consensus", consensusHandler(pipeline, resolveProfile, false))
	mux.HandleFunc("/api/consensus/quick", consensusHandler(pipeline, resolveProfile, true))
	mux.HandleFunc("/api/profiles", profilesHandler(cfg))
	mux.HandleFunc("/health", healthHandler)

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("consensusd: listening", "addr", cfg.Server.ListenAddr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("consensusd: shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

func loggingSpec() *loggingconfig.LoggingConfigSpec {
	spec := loggingconfig.DefaultLoggingConfig()
	return &spec
}

// buildVersion is the version tag VersionedCache suffixes every key with
// (§2 data flow), so a new deploy never reads a previous build's cache
// entries. CONSENSUSD_VERSION lets a deployment pin an explicit tag (e.g.
// a release version distinct from the binary's embedded module version);
// otherwise runtime/version resolves it from -ldflags or the Go module's
// own build info.
func buildVersion() string {
	if v := os.Getenv("CONSENSUSD_VERSION"); v != "" {
		return v
	}
	return version.GetVersion()
}

// buildRecorder selects the Conversation Record repository per §6: a
// JSON-file repository when a base path is configured, otherwise an
// in-memory one. Either is wrapped so a successful Record also announces
// a ResourceMemory/EventMemoryUpdated event on the bus (§2's "subscribers,
// including the Verified Context Builder, consume lazily" data flow).
func buildRecorder(basePath string, bus *eventbus.Bus) consensus.Recorder {
	var repo knowledge.Repository
	if basePath != "" {
		r, err := jsonfile.Open(basePath)
		if err != nil {
			logger.Warn("consensusd: failed to open json knowledge repository, falling back to memory", "error", err)
			repo = memory.New()
		} else {
			repo = r
		}
	} else {
		repo = memory.New()
	}
	return &announcingRecorder{repo: repo, bus: bus}
}

type announcingRecorder struct {
	repo knowledge.Repository
	bus  *eventbus.Bus
}

func (a *announcingRecorder) Record(ctx context.Context, rec consensus.ConversationRecord) error {
	if err := a.repo.Record(ctx, rec); err != nil {
		return err
	}
	a.bus.TriggerEvent(eventbus.SubscriptionEvent{
		ID:           uuid.NewString(),
		ResourceKind: eventbus.ResourceMemory,
		EventKind:    eventbus.EventMemoryUpdated,
		Path:         rec.ConversationID,
		Timestamp:    time.Now(),
	})
	return nil
}

// versionedCacheStats adapts cache.VersionedCache's wrapped Cache for the
// metrics poll below, which needs the underlying Stats method.
func versionedCacheStats(vc *cache.VersionedCache) func(ctx context.Context) (cache.Stats, error) {
	return vc.Stats
}

// pollStats periodically forwards Cache.Stats and Bus.Stats into the
// Prometheus gauges, the same poll-and-forward shape the teacher's
// MetricsListener uses for event-driven metrics (here sourced from a
// ticker instead of the event bus).
func pollStats(ctx context.Context, cacheStats func(ctx context.Context) (cache.Stats, error), bus *eventbus.Bus) func() {
	ticker := time.NewTicker(15 * time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if stats, err := cacheStats(ctx); err == nil {
					for _, level := range stats.Levels {
						prommetrics.SetCacheHits(level.Name, level.Hits)
						prommetrics.SetCacheMisses(level.Name, level.Misses)
					}
				}
				busStats := bus.Stats()
				for clientID, depth := range busStats.QueueDepthByClient {
					prommetrics.SetBusQueueDepth(clientID, depth)
				}
			}
		}
	}()
	return func() {
		ticker.Stop()
		<-done
	}
}

// consensusRequest is the JSON body for both /api/consensus and
// /api/consensus/quick.
type consensusRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Query          string `json:"query"`
	Profile        string `json:"profile,omitempty"`
}

// consensusResponse is the aggregate (non-streaming) result §6 describes:
// the Run's channel is drained fully and collapsed into one JSON object.
type consensusResponse struct {
	ConversationID string  `json:"conversation_id"`
	Answer         string  `json:"answer"`
	TotalTokens    int     `json:"total_tokens"`
	TotalCostUSD   float64 `json:"total_cost_usd"`
	Error          string  `json:"error,omitempty"`
}

// consensusHandler builds the POST /api/consensus[/quick] handler. quick
// bypasses nothing in the pipeline itself — §6 treats "quick" as the
// caller's intent to skip refinement for trivial inputs, which here maps
// onto requesting the daemon's "speed" profile regardless of what the
// caller passed, since every profile still runs all four stages per §3's
// Profile invariant.
func consensusHandler(pipeline *consensus.Pipeline, resolveProfile session.ProfileResolver, quick bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req consensusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Query == "" {
			http.Error(w, "query is required", http.StatusBadRequest)
			return
		}

		profileName := req.Profile
		if quick {
			profileName = "speed"
		}
		profile, err := resolveProfile(profileName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = uuid.NewString()
		}

		out, err := pipeline.Run(r.Context(), consensus.RunRequest{
			ConversationID: conversationID,
			Query:          req.Query,
			Profile:        profile,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		resp := consensusResponse{ConversationID: conversationID}
		for ev := range out {
			switch ev.Kind {
			case consensus.EventConsensusComplete:
				resp.Answer = ev.Result
				resp.TotalTokens = ev.TotalTokens
				resp.TotalCostUSD = ev.TotalCost
			case consensus.EventError:
				resp.Error = ev.Detail
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Error != "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func profilesHandler(cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cfg.Profiles)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
