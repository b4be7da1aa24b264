// Package session holds the logged-in identity. It mirrors the identity into
// durable storage, publishes every change to subscribers and revalidates the
// stored identity against the API once at startup.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/Joseda-hg/taskdesk/internal/api"
	"github.com/Joseda-hg/taskdesk/internal/model"
)

// StorageKey is the durable key holding the serialized identity.
const StorageKey = "currentUser"

type Phase int

const (
	PhaseUnknown Phase = iota
	// PhaseHydrated means the identity came from durable storage and has not
	// been checked against the API yet.
	PhaseHydrated
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseHydrated:
		return "hydrated"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// State is one published value of the store. A nil Identity means logged out.
type State struct {
	Phase    Phase
	Identity *model.Identity
}

func (s State) LoggedIn() bool {
	return s.Identity != nil
}

// AuthAPI is the part of the API client the store talks to.
type AuthAPI interface {
	Login(ctx context.Context, req api.LoginRequest) (model.Identity, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (model.Identity, error)
}

type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Credentials forgets the transport credential (the session cookie) on
// logout.
type Credentials interface {
	Reset(ctx context.Context) error
}

type subscriber struct {
	id int
	fn func(State)
}

type Store struct {
	auth        AuthAPI
	storage     Storage
	credentials Credentials
	logger      *log.Logger

	// writeMu serializes writes and their notifications.
	writeMu    sync.Mutex
	generation uint64

	subsMu      sync.Mutex
	subscribers []subscriber
	nextID      int

	stateMu sync.RWMutex
	state   State

	startOnce sync.Once
	done      chan struct{}
}

// New builds a store. credentials may be nil.
func New(auth AuthAPI, storage Storage, credentials Credentials, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		auth:        auth,
		storage:     storage,
		credentials: credentials,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Start hydrates the identity from durable storage, publishing it before
// returning, then revalidates it in the background. The returned channel is
// closed once the revalidation answer has been applied or discarded. Calls
// after the first return the same channel.
func (s *Store) Start(ctx context.Context) <-chan struct{} {
	s.startOnce.Do(func() {
		generation := s.hydrate(ctx)
		go s.revalidate(ctx, generation)
	})
	return s.done
}

func (s *Store) hydrate(ctx context.Context) uint64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	identity, err := s.load(ctx)
	if err != nil {
		s.logger.Printf("session: hydrate: %v", err)
	}
	if identity != nil {
		s.publish(State{Phase: PhaseHydrated, Identity: identity})
	}
	return s.generation
}

func (s *Store) revalidate(ctx context.Context, generation uint64) {
	defer close(s.done)

	identity, err := s.auth.CurrentUser(ctx)
	if ctx.Err() != nil {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.generation != generation {
		s.logger.Printf("session: revalidation superseded")
		return
	}

	if err != nil {
		s.logger.Printf("session: revalidation failed: %v", err)
		if err := s.storage.RemoveItem(ctx, StorageKey); err != nil {
			s.logger.Printf("session: clear identity: %v", err)
		}
		s.publish(State{Phase: PhaseConfirmed})
		return
	}

	if err := s.save(ctx, identity); err != nil {
		s.logger.Printf("session: persist identity: %v", err)
	}
	s.publish(State{Phase: PhaseConfirmed, Identity: &identity})
}

// Login authenticates against the API. Prior state is kept when the API
// rejects the credentials or the identity cannot be persisted.
func (s *Store) Login(ctx context.Context, username, password string) (model.Identity, error) {
	identity, err := s.auth.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		return model.Identity{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.save(ctx, identity); err != nil {
		return model.Identity{}, err
	}
	s.generation++
	s.publish(State{Phase: PhaseConfirmed, Identity: &identity})
	s.logger.Printf("session: logged in as %s", identity.Username)
	return identity, nil
}

// Logout ends the session on the API and clears local state. Local state is
// cleared even when the API call fails; that error is still returned.
func (s *Store) Logout(ctx context.Context) error {
	callErr := s.auth.Logout(ctx)
	if callErr != nil {
		s.logger.Printf("session: logout call failed: %v", callErr)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.storage.RemoveItem(ctx, StorageKey); err != nil {
		s.logger.Printf("session: clear identity: %v", err)
	}
	if s.credentials != nil {
		if err := s.credentials.Reset(ctx); err != nil {
			s.logger.Printf("session: reset credentials: %v", err)
		}
	}
	s.generation++
	s.publish(State{Phase: PhaseConfirmed})
	return callErr
}

func (s *Store) IsLoggedIn() bool {
	return s.State().LoggedIn()
}

// CurrentUser returns a copy of the current identity, or nil.
func (s *Store) CurrentUser() *model.Identity {
	return s.State().Identity
}

func (s *Store) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return copyState(s.state)
}

// UpdateCurrentUser merges patch into the current identity and persists the
// result. It does nothing when nobody is logged in. The patch mirrors an
// update the API has already accepted, so it confirms the session and
// supersedes a revalidation still in flight.
func (s *Store) UpdateCurrentUser(ctx context.Context, patch model.IdentityPatch) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.State()
	if current.Identity == nil {
		return nil
	}
	merged := current.Identity.Merge(patch)
	if err := s.save(ctx, merged); err != nil {
		return err
	}
	s.generation++
	s.publish(State{Phase: PhaseConfirmed, Identity: &merged})
	return nil
}

// Subscribe registers fn and immediately calls it with the current state.
// fn runs synchronously on every later write, in write order. It may call
// unsubscribe, but must not call the store's writing methods or Subscribe.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	unsubscribe = func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
					break
				}
			}
		})
	}

	fn(s.State())
	return unsubscribe
}

// publish must be called with writeMu held. Subscribers are called with
// only writeMu held, so they can unsubscribe.
func (s *Store) publish(state State) {
	s.stateMu.Lock()
	s.state = copyState(state)
	s.stateMu.Unlock()

	s.subsMu.Lock()
	subscribers := append([]subscriber(nil), s.subscribers...)
	s.subsMu.Unlock()

	for _, sub := range subscribers {
		sub.fn(copyState(state))
	}
}

func (s *Store) load(ctx context.Context) (*model.Identity, error) {
	raw, ok, err := s.storage.GetItem(ctx, StorageKey)
	if err != nil || !ok {
		return nil, err
	}
	var identity model.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		if err := s.storage.RemoveItem(ctx, StorageKey); err != nil {
			s.logger.Printf("session: clear corrupt identity: %v", err)
		}
		return nil, fmt.Errorf("decode stored identity: %w", err)
	}
	return &identity, nil
}

func (s *Store) save(ctx context.Context, identity model.Identity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := s.storage.SetItem(ctx, StorageKey, string(payload)); err != nil {
		return fmt.Errorf("persist identity: %w", err)
	}
	return nil
}

func copyState(state State) State {
	if state.Identity != nil {
		identity := *state.Identity
		state.Identity = &identity
	}
	return state
}
