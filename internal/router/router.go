package router

import (
	"context"
	"net/http"

	"friendmap/config"
	"friendmap/internal/changefeed"
	"friendmap/internal/handler"
	"friendmap/internal/identity"
	"friendmap/internal/metrics"
	"friendmap/internal/middleware"
	"friendmap/internal/publisher"
	"friendmap/internal/repository"
	"friendmap/internal/service"
	"friendmap/internal/session"
	"friendmap/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// connectionRequestsPerWindow caps share requests per user, on top of the
// per-IP limit.
const connectionRequestsPerWindow = 20

// Deps are the externally constructed collaborators the router wires up.
type Deps struct {
	DB       *gorm.DB
	Verifier identity.Verifier
	// Pusher may be nil; pushes are then skipped.
	Pusher service.Pusher
}

// App is the wired server. Sessions must be closed on shutdown.
type App struct {
	Engine   *gin.Engine
	Sessions *session.Manager
	Feed     *changefeed.Feed
	Sockets  *ws.Hub
}

// Setup builds every repository, service and handler and registers the
// routes. ctx bounds background work such as rate-limiter cleanup.
func Setup(ctx context.Context, cfg *config.Config, deps Deps) *App {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Metrics.Enabled {
		r.Use(metrics.Middleware())
	}
	r.Use(middleware.RateLimit(
		middleware.NewInMemoryRateLimiter(ctx, cfg.Server.RateLimit, cfg.Server.RateWindow),
		middleware.ByClientIP,
	))

	feed := changefeed.New(cfg.Location.FeedBufferSize)

	// Repositories
	userRepo := repository.NewUserRepository(deps.DB)
	locRepo := repository.NewLocationRepository(deps.DB, feed)
	shareRepo := repository.NewShareRepository(deps.DB, feed)

	// Services
	notifSvc := service.NewNotificationService(deps.Pusher)
	authSvc := service.NewAuthService(cfg, deps.Verifier, userRepo)
	connSvc := service.NewConnectionService(userRepo, shareRepo, locRepo, notifSvc)

	sessions := session.NewManager(locRepo, connSvc, feed, publisher.Options{
		AccuracyThresholdMeters: cfg.Location.AccuracyThresholdMeters,
		TrailLength:             cfg.Location.TrailLength,
	})
	sockets := ws.NewHub()
	go sessions.RunReaper(ctx, cfg.Location.SessionIdleTimeout)

	// The browser flow only makes sense when Google issues the ID tokens.
	var googleVerifier identity.Verifier
	if cfg.Identity.Provider == config.ProviderGoogle {
		googleVerifier = deps.Verifier
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, sessions, sockets)
	googleOAuthHandler := handler.NewGoogleOAuthHandler(cfg, googleVerifier, authSvc, sessions)
	meHandler := handler.NewMeHandler(authSvc, sessions)
	locationHandler := handler.NewLocationHandler(sessions, sockets)
	connectionHandler := handler.NewConnectionHandler(connSvc)
	friendsHandler := handler.NewFriendsHandler(connSvc, sessions, cfg.Location.NearbyRadiusKm)

	authMw := middleware.AuthRequired(&cfg.JWT)
	requestLimit := middleware.RateLimit(
		middleware.NewInMemoryRateLimiter(ctx, connectionRequestsPerWindow, cfg.Server.RateWindow),
		middleware.ByUID,
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": sessions.Len()})
	})
	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/token", authHandler.Token)
			authGroup.POST("/logout", authMw, authHandler.Logout)
			authGroup.GET("/google", googleOAuthHandler.Redirect)
			authGroup.GET("/google/callback", googleOAuthHandler.Callback)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("", meHandler.Get)
			me.POST("/fcm-token", meHandler.RegisterFCMToken)
			me.PUT("/location", locationHandler.Update)
			me.GET("/location", locationHandler.Get)
			me.PUT("/ghost", locationHandler.SetGhost)
		}

		conns := api.Group("/connections")
		conns.Use(authMw)
		{
			conns.POST("", requestLimit, connectionHandler.Create)
			conns.GET("", connectionHandler.List)
			conns.POST("/:id/approve", connectionHandler.Approve)
			conns.DELETE("/:id", connectionHandler.Remove)
		}

		api.GET("/friends/locations", authMw, friendsHandler.Locations)
	}

	r.GET("/ws/map", ws.UpgradeMapWS(&cfg.JWT, sessions, sockets))

	return &App{Engine: r, Sessions: sessions, Feed: feed, Sockets: sockets}
}

// Close ends every live session and socket.
func (a *App) Close() {
	a.Sockets.CloseAll()
	a.Sessions.CloseAll()
}
