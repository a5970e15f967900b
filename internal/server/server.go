package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/prism/internal/observability"
	"github.com/danmuck/prism/internal/protocol/session"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PendingSource reports outstanding requests. *session.Endpoint and
// *session.Engine satisfy it.
type PendingSource interface {
	Pending() []session.PendingInfo
}

// Admin is the HTTP surface for one prism node.
type Admin struct {
	node     string
	mode     string
	pending  PendingSource
	appeared time.Time
	router   *gin.Engine
	log      zerolog.Logger
}

func NewAdmin(node, mode string, pending PendingSource) *Admin {
	gin.SetMode(gin.ReleaseMode)
	a := &Admin{
		node:     node,
		mode:     mode,
		pending:  pending,
		appeared: time.Now(),
		router:   gin.New(),
		log:      log.Logger.With().Str("component", "admin").Str("node", node).Logger(),
	}
	a.router.Use(
		gin.Recovery(),
		observability.RequestLogger(a.log),
		observability.RequestMetricsMiddleware(node),
	)
	a.registerRoutes()
	return a
}

func (a *Admin) Handler() http.Handler {
	return a.router
}

// Serve runs the admin server on addr until ctx ends.
func (a *Admin) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return a.serve(ctx, ln)
}

func (a *Admin) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", ln.Addr().String()).Msg("admin server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
