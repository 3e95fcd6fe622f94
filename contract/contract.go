//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// CredentialValidator turns a bearer token into an identity.
type CredentialValidator interface {
	ValidateCredential(ctx context.Context, token string) (domain.Identity, error)
}

// MembershipOracle answers whether a user may join a room.
type MembershipOracle interface {
	IsMember(ctx context.Context, userID string, roomID domain.RoomID) (bool, error)
}

// HistoryStore returns a room's messages oldest first and persists new ones.
type HistoryStore interface {
	LoadHistory(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error)
	AppendMessage(ctx context.Context, roomID domain.RoomID, userID, content string) (domain.Message, error)
}

type DisplayNameResolver interface {
	ResolveDisplayName(ctx context.Context, userID string) (string, error)
}

// Member is a connection as seen by the registry and the dispatcher.
// Deliver must never block: it enqueues or fails.
type Member interface {
	ID() domain.ConnectionID
	Deliver(payload []byte) error
}

// EventMember is a Member that also wants the event behind the payload,
// to recognise messages it has already seen. The dispatcher prefers DeliverEvent.
type EventMember interface {
	Member
	DeliverEvent(evt event.Event, payload []byte) error
}

// Transport is the handle a session drives: blocking private sends,
// inbound text frames and close with a reason.
type Transport interface {
	Member
	Send(ctx context.Context, payload []byte) error
	Receive(ctx context.Context) (string, error)
	Close(code int, reason string) error
}

type IRegistry interface {
	Join(roomID domain.RoomID, member Member)
	Leave(roomID domain.RoomID, connectionID domain.ConnectionID)
	MembersOf(roomID domain.RoomID) []Member
	RoomCount() int
	Size(roomID domain.RoomID) int
	Stats() map[domain.RoomID]int
}

type IDispatcher interface {
	Dispatch(ctx context.Context, roomID domain.RoomID, exclude domain.ConnectionID, evt event.Event) int
}
