package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"sniper-core/internal/events"
	"sniper-core/internal/executor"
	"sniper-core/internal/settings"
	"sniper-core/internal/wallet"
	"sniper-core/pkg/db"
	"sniper-core/pkg/pump"
)

// Trader submits manual trades. Satisfied by *executor.Executor.
type Trader interface {
	SubmitBuy(ctx context.Context, req executor.BuyRequest) (*pump.BuySubmission, error)
	SubmitSell(ctx context.Context, userID, mint string, tokenAmount float64) (*pump.SellSubmission, error)
}

// Sweeper re-runs reconciliation over stored intents. Satisfied by
// *reconcile.Reconciler.
type Sweeper interface {
	Sweep(ctx context.Context, status string, limit int) (int, error)
}

// Ingestor accepts raw channel messages for signal detection. Satisfied
// by *bridge.Bridge. The chat listener posts everything it sees here.
type Ingestor interface {
	HandleMessage(ctx context.Context, channelID int64, handle string, sourceMessageID int64, text string) error
}

// Server wires HTTP endpoints around the event bus.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	Q         *db.Queries
	Settings  *settings.Service
	Trader    Trader
	Sweeper   Sweeper
	Ingest    Ingestor
	Wallets   *wallet.Registry
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	RPCEndpoint string
	Version     string
}

func NewServer(bus *events.Bus, q *db.Queries, svc *settings.Service, trader Trader,
	sweeper Sweeper, ingest Ingestor, wallets *wallet.Registry, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		Q:         q,
		Settings:  svc,
		Trader:    trader,
		Sweeper:   sweeper,
		Ingest:    ingest,
		Wallets:   wallets,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/positions", s.getPositions)
			protected.GET("/trades", s.getTrades)
			protected.GET("/intents", s.getIntents)
			protected.GET("/signals", s.getSignals)

			protected.GET("/settings", s.getSettings)
			protected.PUT("/settings", s.putSettings)

			protected.PUT("/wallet", s.putWallet)
			protected.PUT("/telegram", s.putTelegram)
			protected.POST("/channels/:id/subscribe", s.subscribeChannel)
			protected.DELETE("/channels/:id/subscribe", s.unsubscribeChannel)

			protected.POST("/buy", s.postBuy)
			protected.POST("/sell", s.postSell)
			protected.POST("/messages", s.postMessage)
			protected.POST("/reconcile/sweep", s.postSweep)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.Meta.Version,
		"rpc":     s.Meta.RPCEndpoint,
	})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
