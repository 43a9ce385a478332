// Package controlplane owns the gateway's HTTP listener lifecycle
// (spec.md §4.8); it has no listener for control notifications from other
// local processes. It is grounded on the teacher's internal/api.Server Start/Shutdown pair. Unlike
// the teacher, which owns its *http.Server directly as a plain struct
// field, this package runs the lifecycle through a single control
// goroutine that owns all mutable state, so Start/Stop/Status calls never
// race each other regardless of which goroutine calls them.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dinoki-ai/osaurus/internal/events"
)

// Status reports the server's current lifecycle state.
type Status struct {
	Running   bool
	Addr      string
	StartedAt time.Time
}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdStop
	cmdStatus
)

type command struct {
	kind        cmdKind
	addr        string
	handler     http.Handler
	reply       chan error
	statusReply chan Status
}

// Server is the actor-owned listener lifecycle: Start, Stop, and Status
// are all serialized through a single goroutine reading from cmds, so the
// listener/http.Server pair is never touched from two goroutines at once.
type Server struct {
	cmds   chan command
	done   chan struct{}
	bus    *events.Bus
	logger *slog.Logger
}

// NewServer creates a Server and starts its control goroutine. Call Close
// when the process is shutting down to release the goroutine.
func NewServer(bus *events.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cmds:   make(chan command),
		done:   make(chan struct{}),
		bus:    bus,
		logger: logger.With("component", "controlplane"),
	}
	go s.run()
	return s
}

func (s *Server) run() {
	defer close(s.done)
	var httpServer *http.Server
	var startedAt time.Time
	var addr string

	for cmd := range s.cmds {
		switch cmd.kind {
		case cmdStart:
			if httpServer != nil {
				cmd.reply <- errors.New("controlplane: server already running")
				continue
			}
			ln, err := listen(context.Background(), cmd.addr)
			if err != nil {
				cmd.reply <- fmt.Errorf("controlplane: listen %s: %w", cmd.addr, err)
				continue
			}
			httpServer = &http.Server{
				Handler:      cmd.handler,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 120 * time.Second,
			}
			startedAt = time.Now()
			addr = cmd.addr
			s.bus.Publish(events.Event{Source: events.SourceServer, Kind: events.KindServerStarting,
				Data: map[string]any{"addr": addr}})

			serveErrs := make(chan error, 1)

			go func(srv *http.Server, ln net.Listener) {
				s.bus.Publish(events.Event{Source: events.SourceServer, Kind: events.KindServerRunning,
					Data: map[string]any{"addr": addr}})
				err := srv.Serve(ln)
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.logger.Error("listener stopped unexpectedly", "error", err)
				}
				serveErrs <- err
			}(httpServer, ln)

			cmd.reply <- nil

		case cmdStop:
			if httpServer == nil {
				cmd.reply <- nil
				continue
			}
			s.bus.Publish(events.Event{Source: events.SourceServer, Kind: events.KindServerStopping,
				Data: map[string]any{"addr": addr}})
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := httpServer.Shutdown(shutdownCtx)
			cancel()
			httpServer = nil
			s.bus.Publish(events.Event{Source: events.SourceServer, Kind: events.KindServerStopped,
				Data: map[string]any{"addr": addr}})
			cmd.reply <- err

		case cmdStatus:
			cmd.statusReply <- Status{Running: httpServer != nil, Addr: addr, StartedAt: startedAt}
		}
	}
}

// Start brings up the listener on addr serving handler. It returns once
// the listener is bound (not once it has accepted its first connection).
func (s *Server) Start(addr string, handler http.Handler) error {
	reply := make(chan error, 1)
	s.cmds <- command{kind: cmdStart, addr: addr, handler: handler, reply: reply}
	return <-reply
}

// Stop gracefully drains and closes the listener, if running.
func (s *Server) Stop() error {
	reply := make(chan error, 1)
	s.cmds <- command{kind: cmdStop, reply: reply}
	return <-reply
}

// StatusNow returns the current lifecycle status.
func (s *Server) StatusNow() Status {
	reply := make(chan Status, 1)
	s.cmds <- command{kind: cmdStatus, statusReply: reply}
	return <-reply
}

// Close stops accepting further commands and waits for the control
// goroutine to exit. The caller must have already called Stop if a
// listener might still be running.
func (s *Server) Close() {
	close(s.cmds)
	<-s.done
}
