// Package server exposes the core over a thin HTTP API. Auth is out of scope;
// the caller identity arrives in a header.
package server

import (
	"net/http"

	"github.com/ZanzyTHEbar/sparkchat/sparkchat/chat"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/history"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/sparks"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const userHeader = "X-User-ID"

// Server routes HTTP requests into the orchestrator, ledger, and history store.
type Server struct {
	orch   *chat.Orchestrator
	ledger *sparks.Ledger
	store  history.Store
	logger zerolog.Logger
}

// New creates the HTTP server facade.
func New(orch *chat.Orchestrator, ledger *sparks.Ledger, store history.Store, logger zerolog.Logger) *Server {
	return &Server{
		orch:   orch,
		ledger: ledger,
		store:  store,
		logger: logger,
	}
}

// Routes builds the gin engine with all endpoints mounted.
func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api", s.requireUser)
	{
		api.POST("/chat/send", s.sendMessage)
		api.GET("/conversations/:id/messages", s.getHistoryPage)
		api.GET("/sparks/balance", s.getBalance)
		api.POST("/sparks/estimate", s.estimate)
		api.POST("/sparks/claim", s.claimDaily)
		api.GET("/sparks/transactions", s.getTransactions)
	}

	return r
}

// requireUser pulls the caller identity from the header. The upstream auth
// handshake is someone else's concern.
func (s *Server) requireUser(c *gin.Context) {
	if c.GetHeader(userHeader) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + userHeader + " header"})
		return
	}
	c.Next()
}

func userID(c *gin.Context) string {
	return c.GetHeader(userHeader)
}
