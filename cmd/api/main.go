package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-gateway/internal/audit"
	"voice-gateway/internal/auth"
	"voice-gateway/internal/calls"
	"voice-gateway/internal/config"
	"voice-gateway/internal/events"
	"voice-gateway/internal/httpapi"
	"voice-gateway/internal/initiator"
	"voice-gateway/internal/limits"
	"voice-gateway/internal/reporting"
	"voice-gateway/internal/store"
	"voice-gateway/internal/telephony"
	"voice-gateway/internal/voice"
	"voice-gateway/internal/webhook"
	"voice-gateway/pkg/logger"
	"voice-gateway/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	deps, err := buildDependencies(rootCtx, cfg, log)
	if err != nil {
		log.Error("dependency init failed", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	svc := initiator.NewService(
		deps.Store,
		deps.Synthesizer,
		deps.Dialer,
		cfg.WebhookURL(),
		log,
		initiator.WithPublisher(deps.Publisher),
		initiator.WithCapacity(deps.Capacity),
		initiator.WithDialTimeout(cfg.Dial.DialTimeout),
	)
	reconciler := webhook.NewReconciler(
		deps.Store,
		calls.KeywordClassifier{},
		log,
		webhook.WithSynthesizer(deps.Synthesizer),
		webhook.WithTranscriber(deps.Transcriber),
		webhook.WithPublisher(deps.Publisher),
		webhook.WithCapacity(deps.Capacity),
	)

	handlers := httpapi.Handlers{
		Auth:       authManager,
		APIKey:     cfg.Auth.APIKey,
		Store:      deps.Store,
		Initiator:  svc,
		Reconciler: reconciler,
		Audit:      audit.NewService(deps.AuditRepo),
		Stats:      reporting.NewService(deps.Store),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, handlers, auth.RequireAccessToken(authManager), deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening",
			"addr", srv.Addr, "env", cfg.App.Env,
			"simulation", cfg.App.SimulationMode, "dialer", deps.Dialer.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// dependencies holds every swappable collaborator. Simulation mode replaces
// all of them with local stand-ins so the process runs without vendors,
// Postgres, Redis, or a broker.
type dependencies struct {
	Store       store.Store
	Synthesizer voice.Synthesizer
	Transcriber voice.Transcriber
	Dialer      telephony.Dialer
	Publisher   events.Publisher
	Capacity    *limits.Cap
	AuditRepo   audit.Repository

	db        *sql.DB
	rdb       *redis.Client
	publisher events.Publisher
}

func (d *dependencies) Close() {
	if d.publisher != nil {
		_ = d.publisher.Close()
	}
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

func buildDependencies(ctx context.Context, cfg config.Config, log *slog.Logger) (*dependencies, error) {
	if cfg.App.SimulationMode {
		log.Warn("simulation mode: all external collaborators are stand-ins")
		return &dependencies{
			Store:       store.NewMemoryStore(),
			Synthesizer: voice.StaticSynthesizer{Audio: []byte("simulated audio")},
			Transcriber: voice.StaticTranscriber{Text: "simulated transcript"},
			Dialer:      telephony.SimulatedDialer{},
			Publisher:   events.FallbackPublisher{Log: log},
			AuditRepo:   audit.NewMemoryRepo(),
		}, nil
	}

	deps := &dependencies{}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, err
	}
	deps.db = db
	if err := store.Migrate(ctx, db); err != nil {
		deps.Close()
		return nil, err
	}
	deps.Store = store.NewPostgresStore(db)
	deps.AuditRepo = audit.NewPostgresRepo(db)

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.rdb = rdb
	if cfg.Dial.MaxActiveCalls > 0 {
		deps.Capacity = limits.NewCap(rdb, "voice:outbound:active", cfg.Dial.MaxActiveCalls, time.Hour)
	}

	synth, err := voice.NewElevenLabsSynthesizer(voice.ElevenLabsConfig{
		APIKey:  cfg.Voice.ElevenLabsAPIKey,
		VoiceID: cfg.Voice.ElevenLabsVoice,
		ModelID: cfg.Voice.ElevenLabsModel,
		Timeout: cfg.Voice.RequestTimeout,
	})
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Synthesizer = synth

	stt, err := voice.NewDeepgramTranscriber(voice.DeepgramConfig{
		APIKey:  cfg.Voice.DeepgramAPIKey,
		Model:   cfg.Voice.DeepgramModel,
		Timeout: cfg.Voice.RequestTimeout,
	})
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Transcriber = stt

	switch cfg.Dial.Provider {
	case "vapi":
		dialer, err := telephony.NewVapiDialer(telephony.VapiConfig{
			APIKey:     cfg.Dial.VapiAPIKey,
			FromNumber: cfg.Dial.FromNumber,
			Timeout:    cfg.Dial.DialTimeout,
		})
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Dialer = dialer
	default:
		dialer, err := telephony.NewTwilioDialer(telephony.TwilioConfig{
			AccountSID: cfg.Dial.TwilioAccountSID,
			AuthToken:  cfg.Dial.TwilioAuthToken,
			FromNumber: cfg.Dial.FromNumber,
			Timeout:    cfg.Dial.DialTimeout,
		})
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Dialer = dialer
	}

	if cfg.AMQP.URL != "" {
		pub, err := events.NewAMQP(ctx, cfg.AMQP.URL, cfg.AMQP.Exchange, log)
		if err != nil {
			// The broker is a convenience, not a dependency of call handling.
			log.Warn("amqp connect failed, lifecycle events will be dropped", "err", err)
			deps.Publisher = events.FallbackPublisher{Log: log}
		} else {
			deps.Publisher = pub
			deps.publisher = pub
		}
	} else {
		deps.Publisher = events.FallbackPublisher{Log: log}
	}

	return deps, nil
}
