// Package store holds the widget's durable visitor identity: the session
// id, the active conversation id, and the recovery-popup dismissal
// timestamp. It is the runtime's analogue of browser-local storage.
package store

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// Storage keys. Session and conversation are per-installation; the
// recovery dismissal is additionally scoped by store id so that two
// merchants embedding on the same machine do not suppress each other.
const (
	keySessionID      = "reva_session_id"
	keyConversationID = "reva_conversation_id"
	keyDismissPrefix  = "reva_recovery_dismissed:"
)

// Store provides identity access on top of a Driver. Every method is
// best-effort: a failing driver degrades to ephemeral in-memory behavior
// and is never surfaced to callers. The widget must keep working inside a
// host it does not control.
type Store struct {
	driver  Driver
	storeID string
	logger  *slog.Logger

	mu sync.Mutex
	// ephemeralSession backs SessionID when the driver cannot persist one.
	// Valid for the lifetime of this process only.
	ephemeralSession string
}

// New creates a new identity store for the given merchant store id.
func New(driver Driver, storeID string) *Store {
	return &Store{
		driver:  driver,
		storeID: storeID,
		logger:  slog.Default().With("component", "identity_store"),
	}
}

// SessionID returns the visitor's stable session id, generating and
// persisting one on first access. The generated id is returned even when
// the persist fails; it is then stable for this process only.
func (s *Store) SessionID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, err := s.driver.Get(ctx, keySessionID); err == nil && v != "" {
		return v
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Debug("session storage read failed", "error", err)
	}

	if s.ephemeralSession != "" {
		return s.ephemeralSession
	}

	id := "sess_" + shortuuid.New()
	if err := s.driver.Set(ctx, keySessionID, id); err != nil {
		s.logger.Debug("session storage write failed, id is ephemeral", "error", err)
		s.ephemeralSession = id
	}
	return id
}

// ConversationID returns the cached conversation id, or "" when none is
// stored or storage is unavailable.
func (s *Store) ConversationID(ctx context.Context) string {
	v, err := s.driver.Get(ctx, keyConversationID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Debug("conversation storage read failed", "error", err)
		}
		return ""
	}
	return v
}

// SetConversationID caches the backend-assigned conversation id.
func (s *Store) SetConversationID(ctx context.Context, id string) {
	if err := s.driver.Set(ctx, keyConversationID, id); err != nil {
		s.logger.Debug("conversation storage write failed", "error", err)
	}
}

// ClearConversation forgets the active conversation, leaving the session
// id untouched.
func (s *Store) ClearConversation(ctx context.Context) {
	if err := s.driver.Delete(ctx, keyConversationID); err != nil {
		s.logger.Debug("conversation storage delete failed", "error", err)
	}
}

// ClearAllSessionData resets the visitor identity entirely. The next
// SessionID call generates a fresh id.
func (s *Store) ClearAllSessionData(ctx context.Context) {
	s.mu.Lock()
	s.ephemeralSession = ""
	s.mu.Unlock()

	for _, key := range []string{keySessionID, keyConversationID, s.dismissKey()} {
		if err := s.driver.Delete(ctx, key); err != nil {
			s.logger.Debug("storage delete failed", "key", key, "error", err)
		}
	}
}

func (s *Store) dismissKey() string {
	return keyDismissPrefix + s.storeID
}

// RecoveryDismissedAt returns when the recovery popup was last dismissed
// for this store, or the zero time when it never was.
func (s *Store) RecoveryDismissedAt(ctx context.Context) time.Time {
	v, err := s.driver.Get(ctx, s.dismissKey())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Debug("dismissal storage read failed", "error", err)
		}
		return time.Time{}
	}
	unix, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

// SetRecoveryDismissed records now as the dismissal timestamp for this store.
func (s *Store) SetRecoveryDismissed(ctx context.Context) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	if err := s.driver.Set(ctx, s.dismissKey(), ts); err != nil {
		s.logger.Debug("dismissal storage write failed", "error", err)
	}
}
