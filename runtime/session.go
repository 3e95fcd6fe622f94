package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
)

type State int32

const (
	Connecting State = iota
	Authenticating
	Authorizing
	Active
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Authorizing:
		return "authorizing"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Handler holds what every session shares. One Handler serves all connections.
type Handler struct {
	validator  contract.CredentialValidator
	oracle     contract.MembershipOracle
	history    contract.HistoryStore
	names      contract.DisplayNameResolver
	registry   contract.IRegistry
	dispatcher contract.IDispatcher
	log        *slog.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewHandler(
	validator contract.CredentialValidator,
	oracle contract.MembershipOracle,
	history contract.HistoryStore,
	names contract.DisplayNameResolver,
	registry contract.IRegistry,
	dispatcher contract.IDispatcher,
	log *slog.Logger,
	metrics *observability.Metrics,
) *Handler {
	return &Handler{
		validator:  validator,
		oracle:     oracle,
		history:    history,
		names:      names,
		registry:   registry,
		dispatcher: dispatcher,
		log:        log,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Session drives one connection from handshake to close.
// Run is called once, from the goroutine owning the connection.
type Session struct {
	*Handler
	transport contract.Transport
	roomID    domain.RoomID
	token     string
	identity  domain.Identity
	state     atomic.Int32
	log       *slog.Logger
}

func (h *Handler) NewSession(transport contract.Transport, roomID domain.RoomID, token string) *Session {
	s := &Session{
		Handler:   h,
		transport: transport,
		roomID:    roomID,
		token:     token,
		log:       h.log.With("connection", transport.ID(), "room", roomID),
	}
	s.state.Store(int32(Connecting))
	return s
}

// Serve runs a new session to completion and returns its final state.
func (h *Handler) Serve(ctx context.Context, transport contract.Transport, roomID domain.RoomID, token string) State {
	s := h.NewSession(transport, roomID, token)
	s.Run(ctx)
	return s.State()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Identity() domain.Identity {
	return s.identity
}

func (s *Session) transition(to State) {
	from := State(s.state.Swap(int32(to)))
	s.log.Debug("Session transition", "from", from, "to", to)
}

// Run blocks until the connection is closed.
// Setup failures close the transport with a policy violation before
// the registry is ever touched.
func (s *Session) Run(ctx context.Context) {
	defer s.transition(Closed)

	s.transition(Authenticating)
	identity, err := s.validator.ValidateCredential(ctx, s.token)
	if err != nil {
		s.reject(err)
		return
	}
	s.identity = identity
	s.log = s.log.With("user", identity.DisplayName)

	s.transition(Authorizing)
	if err = s.authorize(ctx); err != nil {
		s.reject(err)
		return
	}

	s.transition(Active)
	guard := newReplayGuard(s.transport)
	s.registry.Join(s.roomID, guard)
	s.log.Info("Session opened")
	defer s.teardown(ctx)

	if err = s.catchUp(ctx, guard); err != nil {
		s.log.Debug("Catch-up aborted", "error", err)
		return
	}
	s.listen(ctx)
}

func (s *Session) authorize(ctx context.Context) error {
	if s.roomID == "" {
		return errors.ErrMissingRoom
	}
	isMember, err := s.oracle.IsMember(ctx, s.identity.UserID, s.roomID)
	if err != nil {
		return err
	}
	if !isMember {
		return errors.ErrNotRoomMember
	}
	return nil
}

func (s *Session) reject(err error) {
	s.log.Warn("Failed to authenticate connection", "state", s.State(), "error", err)
	s.metrics.SetupRejections.WithLabelValues(rejectionReason(err)).Inc()
	if closeErr := s.transport.Close(ClosePolicyViolation, "Authentication failed: "+err.Error()); closeErr != nil {
		s.log.Debug("Unable to close rejected connection", "error", closeErr)
	}
}

// catchUp sends the welcome then the room history, privately and in order.
// Live events held by the guard follow, minus the messages the replay covered.
// A closed transport aborts it immediately.
func (s *Session) catchUp(ctx context.Context, guard *replayGuard) error {
	if err := s.sendPrivate(ctx, event.NewSystem(event.WelcomeContent, s.now())); err != nil {
		return err
	}

	messages, err := s.history.LoadHistory(ctx, s.roomID)
	if err != nil {
		s.log.Error("Unable to load history", "error", err)
		return guard.release(ctx)
	}
	guard.markReplayed(messages)

	names := make(map[string]string)
	for _, message := range messages {
		username := s.displayName(ctx, names, message.SenderID)
		if err = s.sendPrivate(ctx, event.NewStoredMessage(username, message.Content, message.ID, message.CreatedAt)); err != nil {
			return err
		}
	}
	return guard.release(ctx)
}

// displayName resolves each sender once per replay.
// An unknown sender is labelled with its user id.
func (s *Session) displayName(ctx context.Context, cache map[string]string, userID string) string {
	if userID == s.identity.UserID {
		return s.identity.DisplayName
	}
	if name, ok := cache[userID]; ok {
		return name
	}
	name, err := s.names.ResolveDisplayName(ctx, userID)
	if err != nil || name == "" {
		s.log.Debug("Unable to resolve display name", "sender", userID, "error", err)
		name = userID
	}
	cache[userID] = name
	return name
}

func (s *Session) listen(ctx context.Context) {
	for {
		text, err := s.transport.Receive(ctx)
		if err != nil {
			if !stdErrors.Is(err, errors.ErrConnectionClosed) && ctx.Err() == nil {
				s.log.Error("Transport error", "error", err)
				s.notify(event.NewError(event.TransportErrorContent, s.now()))
			}
			return
		}
		s.handle(ctx, text)
	}
}

// handle persists one inbound text then echoes it to the whole room, sender included.
// Nothing raised here leaves this connection.
func (s *Session) handle(ctx context.Context, text string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Recovered while handling message", "panic", r)
			s.metrics.RecoveredPanics.Inc()
			s.notify(event.NewError(event.FailedToProcessContent, s.now()))
		}
	}()

	message, err := s.history.AppendMessage(ctx, s.roomID, s.identity.UserID, text)
	if err != nil {
		s.log.Error("Error processing message", "error", err)
		s.metrics.PersistenceFailures.Inc()
		s.notify(event.NewError(event.FailedToProcessContent, s.now()))
		return
	}
	s.metrics.PersistedMessages.Inc()
	s.dispatcher.Dispatch(ctx, s.roomID, "", event.NewStoredMessage(s.identity.DisplayName, message.Content, message.ID, message.CreatedAt))
}

// teardown deregisters first so that the departure never targets this connection.
func (s *Session) teardown(ctx context.Context) {
	s.transition(Closing)
	s.registry.Leave(s.roomID, s.transport.ID())

	departure := event.NewDeparture(s.identity.DisplayName, s.now())
	s.dispatcher.Dispatch(context.WithoutCancel(ctx), s.roomID, s.transport.ID(), departure)

	if err := s.transport.Close(CloseNormal, ""); err != nil {
		s.log.Debug("Transport already closed", "error", err)
	}
	s.log.Info("Session closed")
}

func (s *Session) sendPrivate(ctx context.Context, evt event.Event) error {
	payload, err := evt.Encode()
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, payload)
}

// notify is a best effort private event that never blocks.
func (s *Session) notify(evt event.Event) {
	payload, err := evt.Encode()
	if err != nil {
		s.log.Error("Unable to encode event", "error", err)
		return
	}
	if err = s.transport.Deliver(payload); err != nil {
		s.log.Debug("Unable to notify connection", "error", err)
	}
}

func rejectionReason(err error) string {
	switch {
	case stdErrors.Is(err, errors.ErrMissingToken):
		return "missing_token"
	case stdErrors.Is(err, errors.ErrMalformedToken):
		return "malformed_token"
	case stdErrors.Is(err, errors.ErrExpiredOrInvalidSignature):
		return "expired_or_invalid_signature"
	case stdErrors.Is(err, errors.ErrWrongIssuer):
		return "wrong_issuer"
	case stdErrors.Is(err, errors.ErrNoSubject):
		return "no_subject"
	case stdErrors.Is(err, errors.ErrUserNotFound):
		return "user_not_found"
	case stdErrors.Is(err, errors.ErrMissingRoom):
		return "missing_room"
	case stdErrors.Is(err, errors.ErrNotRoomMember):
		return "not_room_member"
	default:
		return "internal"
	}
}
