package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Server wraps the chart-serving HTTP server with sane timeouts.
type Server struct {
	srv *http.Server
	log *logrus.Entry
}

func New(logger *logrus.Logger, addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		log: logger.WithField("component", "http_server"),
	}
}

func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.srv.Addr).Info("Starting HTTP server")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}
