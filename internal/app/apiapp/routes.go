package apiapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
	candidatesvc "github.com/nakuljn/ember-dating/internal/services/candidates"
	chatsvc "github.com/nakuljn/ember-dating/internal/services/chat"
	matchessvc "github.com/nakuljn/ember-dating/internal/services/matches"
	quotasvc "github.com/nakuljn/ember-dating/internal/services/quota"
	swipesvc "github.com/nakuljn/ember-dating/internal/services/swipes"
	"github.com/nakuljn/ember-dating/internal/transport/http/handlers"
)

type metricsHandler interface {
	Handler() http.Handler
}

type Dependencies struct {
	AuthService      *authsvc.Service
	CandidateService *candidatesvc.Service
	ChatManager      *chatsvc.Manager
	MatchService     *matchessvc.Service
	QuotaService     *quotasvc.Service
	SwipeService     *swipesvc.Service
	ChatSocket       http.Handler
	Metrics          metricsHandler
	Logger           *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	healthHandler := handlers.NewHealthHandler()
	quotaHandler := handlers.NewQuotaHandler(deps.QuotaService)
	candidateHandler := handlers.NewCandidateHandler(deps.CandidateService)
	swipeHandler := handlers.NewSwipeHandler(deps.SwipeService)
	likesHandler := handlers.NewLikesHandler(deps.MatchService)
	matchesHandler := handlers.NewMatchesHandler(deps.MatchService)
	messagesHandler := handlers.NewMessagesHandler(deps.ChatManager)
	authMW := AuthMiddleware(deps.AuthService, deps.Logger)

	r.Get("/healthz", healthHandler.Get)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	if deps.ChatSocket != nil {
		// The socket authenticates itself: browsers cannot set headers on
		// the upgrade request, so the token may arrive as a query param.
		r.Handle("/ws/chat", deps.ChatSocket)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(requestTimeout())
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
	})

	r.Group(func(r chi.Router) {
		r.Use(requestTimeout(), authMW)
		r.Get("/quota", quotaHandler.Handle)
		r.Get("/candidates", candidateHandler.Handle)
		r.Post("/swipe", swipeHandler.Handle)
		r.Get("/likes/received", likesHandler.Received)
		r.Get("/matches", matchesHandler.Handle)
		r.Get("/matches/{id}", matchesHandler.Get)
		r.Get("/matches/{id}/messages", messagesHandler.History)
		r.Post("/matches/{id}/messages", messagesHandler.Send)
		r.Post("/messages/{id}/read", messagesHandler.Read)
		r.Delete("/messages/{id}", messagesHandler.Delete)
	})
}
