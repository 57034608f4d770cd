package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	alertapp "router-supervisor/internal/alerts/application"
	alertrepo "router-supervisor/internal/alerts/infrastructure/postgres"
	alerthttp "router-supervisor/internal/alerts/interfaces/http"
	alertnotify "router-supervisor/internal/alerts/notify"
	"router-supervisor/internal/auth"
	inventoryrepo "router-supervisor/internal/inventory/infrastructure/postgres"
	"router-supervisor/internal/observability/metrics"
	"router-supervisor/internal/poller"
	telemetrypostgres "router-supervisor/internal/telemetry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "router-supervisor").Logger()
	cfg := loadConfig(logger)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open failed")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("db ping failed")
	}

	metrics.Init(db, logger)

	ruleRepo := alertrepo.NewRuleRepository(db)
	alertRepo := alertrepo.NewAlertRepository(db)
	routerRepo := inventoryrepo.NewRouterRepository(db)
	latestReader := telemetrypostgres.NewLatestReader(db)

	broker := alerthttp.NewSSEBroker()
	notifiers := []alertapp.AlertNotifier{broker}
	if cfg.AlertWebhookURL != "" {
		channel, err := alertnotify.NewWebhookChannel(cfg.AlertWebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("alert webhook setup failed")
		}
		tpl, err := alertnotify.NewTemplate(cfg.AlertNotifyTemplate)
		if err != nil {
			logger.Fatal().Err(err).Msg("alert template setup failed")
		}
		notifier, err := alertnotify.NewNotifier(routerRepo, alertRepo, channel, tpl,
			alertnotify.WithEscalation(cfg.AlertEscalationAfter),
			alertnotify.WithCooldown(cfg.AlertNotifyCooldown),
			alertnotify.WithDedupeWindow(cfg.AlertNotifyDedupeWindow),
			alertnotify.WithRequestTimeout(cfg.AlertNotifyTimeout),
			alertnotify.WithLogger(logger),
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("alert notifier setup failed")
		}
		notifiers = append(notifiers, notifier)
	}

	alertService, err := alertapp.NewService(ruleRepo, alertRepo, routerRepo, routerRepo,
		alertapp.WithNotifier(alertnotify.NewMultiNotifier(notifiers...)),
		alertapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("alert service setup failed")
	}

	pollCfg, err := poller.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("poller config invalid")
	}
	alertPoller, err := poller.New(pollCfg, routerRepo, latestReader, alertService, poller.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("poller setup failed")
	}
	go alertPoller.Run(context.Background())

	alertHandler, err := alerthttp.NewHandler(alertService)
	if err != nil {
		logger.Fatal().Err(err).Msg("alert handler setup failed")
	}
	rulesHandler, err := alerthttp.NewRulesHandler(ruleRepo)
	if err != nil {
		logger.Fatal().Err(err).Msg("rules handler setup failed")
	}
	exportHandler := alerthttp.NewExportHandler(alertService)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/alerts/summary", alertHandler)
	mux.Handle("/api/v1/alerts/stream", alerthttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/rules", rulesHandler)
	mux.Handle("/api/v1/rules/", rulesHandler)
	mux.Handle("/api/v1/exports/", exportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("http server stopped")
	}
}

type config struct {
	DatabaseURL             string
	HTTPAddr                string
	JWTSecret               string
	AlertWebhookURL         string
	AlertNotifyTemplate     string
	AlertEscalationAfter    time.Duration
	AlertNotifyCooldown     time.Duration
	AlertNotifyDedupeWindow time.Duration
	AlertNotifyTimeout      time.Duration
}

func loadConfig(logger zerolog.Logger) config {
	cfg := config{
		DatabaseURL:             getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:                getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:               getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		AlertWebhookURL:         getenvDefault("ALERT_WEBHOOK_URL", ""),
		AlertNotifyTemplate:     getenvDefault("ALERT_NOTIFY_TEMPLATE", ""),
		AlertEscalationAfter:    getenvDuration("ALERT_ESCALATION_AFTER", 0),
		AlertNotifyCooldown:     getenvDuration("ALERT_NOTIFY_COOLDOWN", 0),
		AlertNotifyDedupeWindow: getenvDuration("ALERT_NOTIFY_DEDUP_WINDOW", 0),
		AlertNotifyTimeout:      getenvDuration("ALERT_NOTIFY_TIMEOUT", 5*time.Second),
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", resp.status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the wrapped writer so streaming handlers keep working
// behind the middleware.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
