package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nakuljn/ember-dating/internal/config"
	"github.com/nakuljn/ember-dating/internal/infra/metrics"
	"github.com/nakuljn/ember-dating/internal/infra/telegram"
	"github.com/nakuljn/ember-dating/internal/jobs/cleanup"
	redrepo "github.com/nakuljn/ember-dating/internal/repo/redis"
	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
	candidatesvc "github.com/nakuljn/ember-dating/internal/services/candidates"
	chatsvc "github.com/nakuljn/ember-dating/internal/services/chat"
	matchessvc "github.com/nakuljn/ember-dating/internal/services/matches"
	quotasvc "github.com/nakuljn/ember-dating/internal/services/quota"
	ratesvc "github.com/nakuljn/ember-dating/internal/services/rate"
	swipesvc "github.com/nakuljn/ember-dating/internal/services/swipes"
	"github.com/nakuljn/ember-dating/internal/transport/ws"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	repos      repositories
	redis      *goredis.Client
	chat       *chatsvc.Manager
	cleanup    *cleanup.Job
	auth       *authsvc.Service
	users      userRepo
	httpRouter http.Handler
	stop       context.CancelFunc
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	loc, err := cfg.Quota.Location()
	if err != nil {
		return nil, err
	}

	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	redisClient, err := redrepo.NewClient(ctx, redrepo.ClientConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		repos.close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	m := metrics.New()

	var pusher chatsvc.Pusher
	if cfg.Telegram.Token != "" {
		if p, err := telegram.NewPusher(cfg.Telegram.Token); err != nil {
			log.Warn("telegram pusher init failed, offline nudges disabled", zap.Error(err))
		} else {
			pusher = p
		}
	}

	sessionRepo := redrepo.NewSessionRepo(redisClient)
	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, sessionRepo, cfg.Auth.RefreshTTL)

	chatManager := chatsvc.NewManager(chatsvc.Dependencies{
		Tx:            repos.tx,
		Matches:       repos.matches,
		Messages:      repos.messages,
		Notifications: repos.notifications,
		Users:         repos.users,
		Limiter: ratesvc.NewLimiter(
			redrepo.NewRateRepo(redisClient),
			ratesvc.ActionChatSend,
			cfg.Chat.MaxPerMinute,
			cfg.Chat.MaxPer10Sec,
		),
		Pusher:  pusher,
		Bus:     redrepo.NewEventBus(redisClient, cfg.Chat.FanoutChannel),
		Metrics: m,
		Logger:  log,
	}, chatsvc.Config{
		IdleTimeout:     cfg.Chat.IdleTimeout,
		MaxContentRunes: cfg.Chat.MaxContentRunes,
		SendBuffer:      cfg.Chat.SendBuffer,
		ReplayLimit:     cfg.Chat.ReplayLimit,
		RetryAttempts:   int(cfg.Chat.RetryAttempts),
		RetryInitial:    cfg.Chat.RetryInitial,
	})

	quotaService := quotasvc.NewService(quotasvc.Dependencies{
		Users:    repos.users,
		Counters: repos.quotas,
	}, quotasvc.Config{
		DefaultDailyLimit: cfg.Quota.DefaultDailyLimit,
		Location:          loc,
	})
	matchesService := matchessvc.NewService(matchessvc.Dependencies{
		Tx:            repos.tx,
		Swipes:        repos.swipes,
		Matches:       repos.matches,
		Notifications: repos.notifications,
		Notifier:      chatManager,
		Metrics:       m,
	})
	swipeService := swipesvc.NewService(swipesvc.Dependencies{
		Tx:       repos.tx,
		Users:    repos.users,
		Swipes:   repos.swipes,
		Ledger:   quotaService,
		Detector: matchesService,
		Metrics:  m,
	})
	candidateService := candidatesvc.NewService(repos.candidates)

	r := chi.NewRouter()
	ApplyMiddlewares(r, log, m)
	RegisterRoutes(r, Dependencies{
		AuthService:      authService,
		CandidateService: candidateService,
		ChatManager:      chatManager,
		MatchService:     matchesService,
		QuotaService:     quotaService,
		SwipeService:     swipeService,
		ChatSocket: ws.NewHandler(chatManager, authService, ws.Config{
			WriteWait:       cfg.Chat.WriteWait,
			PongWait:        cfg.Chat.PongWait,
			MaxMessageBytes: int64(cfg.Chat.MaxMessageBytes),
			AllowedOrigins:  cfg.Chat.AllowedOrigins,
		}, log),
		Metrics: m,
		Logger:  log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:    cfg,
		logger: log,
		server: server,
		repos:  repos,
		redis:  redisClient,
		chat:   chatManager,
		cleanup: cleanup.New(repos.quotas, repos.notifications, cleanup.Config{
			QuotaRetentionDays:    cfg.Cleanup.QuotaRetentionDays,
			NotificationRetention: cfg.Cleanup.NotificationRetention,
			Location:              loc,
		}, log),
		auth:       authService,
		users:      repos.users,
		httpRouter: r,
	}, nil
}

// Start launches the background workers: cross-instance fan-out and the
// cleanup job.
func (a *App) Start(ctx context.Context) error {
	ctx, a.stop = context.WithCancel(ctx)
	if err := a.chat.Start(ctx); err != nil {
		return fmt.Errorf("start chat fan-out: %w", err)
	}
	go a.cleanup.Start(ctx, a.cfg.Cleanup.Interval)
	return nil
}

func (a *App) Run() error {
	a.logger.Info("api server started",
		zap.String("addr", a.cfg.HTTP.Addr),
		zap.String("storage", a.cfg.Storage.Driver),
		zap.String("instance_id", a.chat.InstanceID()),
	)
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if err := a.chat.Shutdown(ctx); err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	if a.stop != nil {
		a.stop()
	}
	a.repos.close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
