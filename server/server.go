// Package server exposes Knight evaluation over the network and to editors:
// a Connect/gRPC evaluation server with per-client sessions, a gRPC client
// for it, and a language server speaking LSP on stdio.
package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/knight/compiler"
	"github.com/chazu/knight/vm"
)

var log = commonlog.GetLogger("knight.server")

// KnightServer serves Knight evaluation. It serves Connect (HTTP/JSON and
// binary), gRPC and gRPC-Web on the same port.
type KnightServer struct {
	sessions *SessionStore
	mux      *http.ServeMux
	cfg      *serverConfig

	mu   sync.Mutex
	http *http.Server

	stopSweeper func()
}

// ServerOption configures a KnightServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	shell         vm.ShellFunc
	seed          uint64
	sessionTTL    time.Duration
	sweepInterval time.Duration
}

// WithShell sets the command runner used by ` in every session. Without
// it, shell commands are refused.
func WithShell(fn vm.ShellFunc) ServerOption {
	return func(c *serverConfig) { c.shell = fn }
}

// WithSeed makes RANDOM deterministic. Each session starts from the same seed.
func WithSeed(seed uint64) ServerOption {
	return func(c *serverConfig) { c.seed = seed }
}

// WithSessionTTL sets how long an idle session lives.
func WithSessionTTL(ttl time.Duration) ServerOption {
	return func(c *serverConfig) { c.sessionTTL = ttl }
}

// WithSweepInterval sets how often idle sessions are looked for.
func WithSweepInterval(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.sweepInterval = d }
}

// New creates a KnightServer.
func New(opts ...ServerOption) *KnightServer {
	cfg := &serverConfig{
		shell:         vm.NoShell,
		sessionTTL:    30 * time.Minute,
		sweepInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &KnightServer{
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	s.sessions = NewSessionStore(s.newInterpreter)

	// Register Connect/gRPC service handlers
	svc := NewEvalService(s.sessions)
	s.mux.Handle(EvaluateProcedure, connect.NewUnaryHandler(EvaluateProcedure, svc.Evaluate))
	s.mux.Handle(ListGlobalsProcedure, connect.NewUnaryHandler(ListGlobalsProcedure, svc.ListGlobals))
	s.mux.Handle(CloseProcedure, connect.NewUnaryHandler(CloseProcedure, svc.Close))

	s.stopSweeper = s.sessions.StartSweeper(cfg.sweepInterval, cfg.sessionTTL)

	return s
}

// newInterpreter builds a session interpreter. PROMPT sees an empty input;
// output is captured per evaluation.
func (s *KnightServer) newInterpreter(out *bytes.Buffer) *vm.Interpreter {
	opts := []vm.Option{
		vm.WithParser(compiler.Parse),
		vm.WithStdin(strings.NewReader("")),
		vm.WithStdout(out),
		vm.WithShell(s.cfg.shell),
	}
	if s.cfg.seed != 0 {
		opts = append(opts, vm.WithSeed(s.cfg.seed))
	}
	return vm.NewInterpreter(opts...)
}

// Handler returns the HTTP handler serving every procedure.
func (s *KnightServer) Handler() http.Handler {
	return s.mux
}

// Sessions returns the server's session store.
func (s *KnightServer) Sessions() *SessionStore {
	return s.sessions
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *KnightServer) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l. HTTP/1.1 and unencrypted HTTP/2 are both
// accepted, so gRPC clients can connect without TLS.
func (s *KnightServer) Serve(l net.Listener) error {
	var protocols http.Protocols
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	srv := &http.Server{
		Handler:           s.mux,
		Protocols:         &protocols,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	log.Notice("listening", "addr", l.Addr().String(),
		"evaluate", "http://"+l.Addr().String()+EvaluateProcedure)

	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, waits for in-flight requests, then
// stops every session.
func (s *KnightServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.Stop()
	return err
}

// Stop stops the sweeper and every session.
func (s *KnightServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.sessions.Close()
}
