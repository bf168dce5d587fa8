// FILE: logthrottle/src/internal/status/server.go
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logthrottle/src/internal/config"
	"logthrottle/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
)

// Server serves the status snapshot as JSON over HTTP
type Server struct {
	config    *config.StatusConfig
	collector *Collector
	server    *fasthttp.Server
	logger    *log.Logger

	requests atomic.Uint64
	stopOnce sync.Once
}

func NewServer(cfg *config.StatusConfig, collector *Collector, logger *log.Logger) (*Server, error) {
	if cfg == nil || collector == nil {
		return nil, fmt.Errorf("status config and collector are required")
	}
	return &Server{
		config:    cfg,
		collector: collector,
		logger:    logger,
	}, nil
}

// Start listens in the background until ctx is done or Stop is called
func (s *Server) Start(ctx context.Context) error {
	fasthttpLogger := compat.NewFastHTTPAdapter(s.logger)

	s.server = &fasthttp.Server{
		Name:             version.ServerName(),
		Handler:          s.requestHandler,
		DisableKeepalive: false,
		Logger:           fasthttpLogger,
		ReadTimeout:      time.Duration(s.config.ReadTimeout) * time.Millisecond,
		WriteTimeout:     time.Duration(s.config.WriteTimeout) * time.Millisecond,
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("msg", "Status server started",
			"component", "status_server",
			"host", s.config.Host,
			"port", s.config.Port,
			"path", s.config.Path)

		if err := s.server.ListenAndServe(addr); err != nil {
			errChan <- err
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("status server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.server.ShutdownWithContext(ctx); err != nil {
			s.logger.Warn("msg", "Status server shutdown error",
				"component", "status_server",
				"error", err)
		}
	})
}

func (s *Server) requestHandler(ctx *fasthttp.RequestCtx) {
	s.requests.Add(1)
	ctx.SetContentType("application/json")

	if string(ctx.Path()) != s.config.Path {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		json.NewEncoder(ctx).Encode(map[string]any{
			"error": "Not Found",
		})
		return
	}

	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		json.NewEncoder(ctx).Encode(map[string]any{
			"error": "Method Not Allowed",
		})
		return
	}

	s.handleStatus(ctx)
}

func (s *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	snapshot := s.collector.Snapshot()
	snapshot["server"] = map[string]any{
		"host":     s.config.Host,
		"port":     s.config.Port,
		"requests": s.requests.Load(),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("msg", "Failed to encode status",
			"component", "status_server",
			"error", err)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetBody(data)
}
