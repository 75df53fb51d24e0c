package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parrotlabs/parrot/internal/account"
	"github.com/parrotlabs/parrot/internal/logging"
)

// StateReader exposes per-handle posting state and audit history for the
// status endpoint.
type StateReader interface {
	State(ctx context.Context, handle string) account.State
	ReadAudit(handle string) ([]account.AuditRecord, error)
}

type ServerConfig struct {
	Addr    string
	Handles []string
	Version string
}

// Server hosts the health, metrics and status endpoints while the agent
// runs.
type Server struct {
	cfg    ServerConfig
	health *HealthChecker
	states StateReader
	logger logging.Logger
}

func NewServer(cfg ServerConfig, health *HealthChecker, states StateReader, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{cfg: cfg, health: health, states: states, logger: logger}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.health.Handler())
	router.GET("/metrics", MetricsHandler())
	router.GET("/status", s.statusHandler())

	srv := &http.Server{Addr: s.cfg.Addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logging.Fields{"addr": s.cfg.Addr}).Info("Status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// recentAuditLimit caps how many audit entries the status endpoint returns
// per handle.
const recentAuditLimit = 10

type auditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
	PostID    string    `json:"post_id,omitempty"`
}

func (s *Server) statusHandler() gin.HandlerFunc {
	type handleStatus struct {
		PostsToday   int          `json:"posts_today"`
		LastPostDate string       `json:"last_post_date,omitempty"`
		Recent       []auditEntry `json:"recent,omitempty"`
	}
	return func(c *gin.Context) {
		statuses := make(map[string]handleStatus, len(s.cfg.Handles))
		for _, handle := range s.cfg.Handles {
			state := s.states.State(c.Request.Context(), handle)
			statuses[handle] = handleStatus{
				PostsToday:   state.PostsToday,
				LastPostDate: state.LastPostDate,
				Recent:       s.recentAudit(handle),
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"service":   "parrot",
			"version":   s.cfg.Version,
			"timestamp": time.Now().Unix(),
			"handles":   statuses,
		})
	}
}

// recentAudit returns the newest audit entries for a handle, newest first.
// A missing or unreadable log yields an empty list rather than a 500.
func (s *Server) recentAudit(handle string) []auditEntry {
	records, err := s.states.ReadAudit(handle)
	if err != nil {
		s.logger.WithFields(logging.Fields{"handle": handle, "error": err.Error()}).Debug("Audit log unavailable")
		return nil
	}
	if len(records) > recentAuditLimit {
		records = records[len(records)-recentAuditLimit:]
	}
	entries := make([]auditEntry, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		entries = append(entries, auditEntry{
			Timestamp: records[i].Timestamp,
			Outcome:   records[i].Outcome,
			PostID:    records[i].PostID,
		})
	}
	return entries
}
