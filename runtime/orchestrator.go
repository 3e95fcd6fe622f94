// Package runtime holds the live state of the relay: which connection sits
// in which room, how an event reaches them, and the life of each connection.
// It contains no storage or transport code.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
	"sync"
)

// Orchestrator owns the registry, the dispatcher and the session handler,
// plus the background workers run by the supervisor.
type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   *Registry
	dispatcher *Dispatcher
	handler    *Handler
	workers    []contract.Worker
	sessions   sync.WaitGroup
	draining   bool
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry *Registry,
	dispatcher *Dispatcher, handler *Handler) *Orchestrator {
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		dispatcher: dispatcher,
		handler:    handler,
	}
}

func (o *Orchestrator) Add(workers ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workers = append(o.workers, workers...)
}

// Serve runs one connection's session on the calling goroutine.
// Once Start is waiting for the last sessions, new connections are turned away.
func (o *Orchestrator) Serve(ctx context.Context, transport contract.Transport, roomID domain.RoomID, token string) State {
	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		o.log.Debug("Refusing connection while shutting down", "room", roomID, "connection", transport.ID())
		if err := transport.Close(CloseGoingAway, "Server shutting down"); err != nil {
			o.log.Debug("Unable to close refused connection", "error", err)
		}
		return Closed
	}
	o.sessions.Add(1)
	o.mu.Unlock()
	defer o.sessions.Done()
	return o.handler.Serve(ctx, transport, roomID, token)
}

func (o *Orchestrator) Registry() contract.IRegistry {
	return o.registry
}

func (o *Orchestrator) Dispatcher() contract.IDispatcher {
	return o.dispatcher
}

// Start hands every worker to the supervisor and blocks until they all stopped,
// then waits for the sessions still tearing down.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	o.supervisor.Add(o.workers...)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers", "workers", len(o.workers))
	o.supervisor.Run(ctx)

	o.mu.Lock()
	o.draining = true
	o.mu.Unlock()
	o.sessions.Wait()
	o.log.Info("Every session is closed", "rooms", o.registry.RoomCount())
	return nil
}

// Stop initiates a graceful shutdown of the supervised workers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
