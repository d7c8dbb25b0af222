package server

import (
	"context"
	"net/http"
	"time"

	"github.com/riskscope/riskscope/internal/utils"
	"github.com/riskscope/riskscope/pkg/history"
	"github.com/riskscope/riskscope/pkg/schema"
)

// Locker serialises writers across processes.
type Locker interface {
	Lock() error
	Unlock() error
}

type Server struct {
	History  *history.History
	Schema   schema.Schema
	Location *time.Location
	Username string
	Password string
	// Lock, when set, is held around every mutation.
	Lock Locker
}

func New(h *history.History, user, pass string) *Server {
	return &Server{
		History:  h,
		Schema:   schema.Default(),
		Location: time.Local,
		Username: user,
		Password: pass,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/history", s.basicAuth(s.handleHistory))
	mux.HandleFunc("GET /api/history/export.csv", s.basicAuth(s.handleExport))
	mux.HandleFunc("GET /api/history/{pos}/report", s.basicAuth(s.handleReport))
	mux.HandleFunc("DELETE /api/history/{pos}", s.basicAuth(s.handleDelete))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))

	return mux
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Log.Infof("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		utils.Log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
