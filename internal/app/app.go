package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/config"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/metrics"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/scheduler"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/store"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/telegram"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/training"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	metrics *metrics.Metrics
	repo    store.Repo
	router  *telegram.Router
	sched   *scheduler.Scheduler
}

// Must exceed the long-polling timeout used for getUpdates.
const telegramHTTPTimeout = 60 * time.Second

const pollTimeoutSeconds = 30

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	client := &http.Client{Timeout: telegramHTTPTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	m := metrics.New(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv, metrics: m}, nil
}

func (a *App) Run(ctx context.Context) error {
	policy := domain.Policy{Accelerated: a.cfg.Accelerated()}
	a.log.Info("starting pet trainer bot",
		zap.String("env", a.cfg.Env),
		zap.Bool("accelerated", policy.Accelerated),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("bot", a.bot.Self.UserName),
	)

	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath, a.cfg.OwnerID)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))

	svc := training.NewService(repo, a.log.Named("training"), policy)
	modes := NewModeSwitch(svc, nil, a.cfg.Production(), a.metrics, a.log.Named("mode"))
	allow := domain.NewAllowList(a.cfg.OwnerID, a.cfg.AuthorizedUsers...)
	a.router = telegram.NewRouter(a.bot, a.log.Named("telegram"), svc, modes, allow, a.metrics)
	a.sched = scheduler.New(repo, a.log.Named("scheduler"), a.router, policy, scheduler.WithMetrics(a.metrics))
	modes.sched = a.sched
	a.metrics.SetAccelerated(policy.Accelerated)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.sched.Start(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.shutdown()
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

func (a *App) shutdown() {
	a.bot.StopReceivingUpdates()
	a.sched.Stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := a.httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}

	if err := a.repo.Close(); err != nil {
		a.log.Warn("sqlite close error", zap.Error(err))
	}
}
