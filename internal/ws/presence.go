package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"chat-server/internal/models"
	"chat-server/internal/observability"
)

const (
	// DefaultOfflineDelay absorbs reconnect races: a user is declared
	// offline only after this long without any live connection.
	DefaultOfflineDelay = 5 * time.Second
	// DefaultIdleAfter is the heartbeat gap after which an online user is
	// marked away.
	DefaultIdleAfter = 5 * time.Minute

	idleSweepInterval = 30 * time.Second
	statusWriteBudget = 3 * time.Second
)

type statusStore interface {
	UpdateStatus(ctx context.Context, userID int64, status string) error
}

type presenceBroadcaster interface {
	BroadcastAll(event models.Event)
}

// PresenceTracker derives online/away/offline transitions from connection
// lifecycle and heartbeat activity. Each transition emits exactly one
// presence event on the shared presence channel (every connected client) and
// is persisted to the store.
//
// Transitions racing inside the offline debounce window coalesce: a
// reconnect bumps the per-user epoch, which invalidates any pending offline
// timer, so connect→disconnect→connect nets a single online event.
type PresenceTracker struct {
	hub          presenceBroadcaster
	sessions     *SessionRegistry
	store        statusStore
	offlineDelay time.Duration
	idleAfter    time.Duration

	mu     sync.Mutex
	states map[int64]*presenceState
}

type presenceState struct {
	status string
	epoch  uint64
}

// NewPresenceTracker wires the tracker. Pass zero durations for defaults.
func NewPresenceTracker(hub presenceBroadcaster, sessions *SessionRegistry, store statusStore, offlineDelay, idleAfter time.Duration) *PresenceTracker {
	if offlineDelay <= 0 {
		offlineDelay = DefaultOfflineDelay
	}
	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}
	return &PresenceTracker{
		hub:          hub,
		sessions:     sessions,
		store:        store,
		offlineDelay: offlineDelay,
		idleAfter:    idleAfter,
		states:       make(map[int64]*presenceState),
	}
}

// Online records the identity's first connection. Invalidates any pending
// offline timer; emits an online event only when the last broadcast status
// was not already online.
func (t *PresenceTracker) Online(userID int64) {
	t.mu.Lock()
	st := t.ensureLocked(userID)
	st.epoch++
	changed := st.status != models.StatusOnline
	st.status = models.StatusOnline
	t.mu.Unlock()

	if changed {
		t.emit(userID, models.StatusOnline)
	}
}

// Offline schedules the offline transition after the debounce delay. The
// transition fires only if no reconnect happened in the meantime.
func (t *PresenceTracker) Offline(userID int64) {
	t.mu.Lock()
	st := t.ensureLocked(userID)
	epoch := st.epoch
	t.mu.Unlock()

	time.AfterFunc(t.offlineDelay, func() {
		t.declareOffline(userID, epoch)
	})
}

func (t *PresenceTracker) declareOffline(userID int64, epoch uint64) {
	t.mu.Lock()
	st, ok := t.states[userID]
	if !ok || st.epoch != epoch || st.status == models.StatusOffline {
		t.mu.Unlock()
		return
	}
	if len(t.sessions.ConnectionsFor(userID)) > 0 {
		t.mu.Unlock()
		return
	}
	st.status = models.StatusOffline
	t.mu.Unlock()

	t.emit(userID, models.StatusOffline)
}

// SetStatus applies a client-requested status (online or away). Other values
// are ignored; offline is only ever derived from disconnects.
func (t *PresenceTracker) SetStatus(userID int64, status string) {
	if status != models.StatusOnline && status != models.StatusAway {
		return
	}

	t.mu.Lock()
	st, ok := t.states[userID]
	if !ok || st.status == models.StatusOffline || st.status == status {
		t.mu.Unlock()
		return
	}
	st.status = status
	t.mu.Unlock()

	t.emit(userID, status)
}

// Activity notes traffic from the identity, pulling an away user back online.
func (t *PresenceTracker) Activity(userID int64) {
	t.SetStatus(userID, models.StatusOnline)
}

// Snapshot returns the current status per known identity.
func (t *PresenceTracker) Snapshot() map[int64]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int64]string, len(t.states))
	for userID, st := range t.states {
		out[userID] = st.status
	}
	return out
}

// Run sweeps online users into away after the idle threshold. Blocks until
// ctx is done; launch as a goroutine.
func (t *PresenceTracker) Run(ctx context.Context) {
	ticker := time.NewTicker(idleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweepIdle()
		}
	}
}

func (t *PresenceTracker) sweepIdle() {
	cutoff := time.Now().Add(-t.idleAfter)
	for _, userID := range t.sessions.OnlineUsers() {
		t.mu.Lock()
		st, ok := t.states[userID]
		online := ok && st.status == models.StatusOnline
		t.mu.Unlock()
		if !online {
			continue
		}
		if latest := t.sessions.LatestActivity(userID); !latest.IsZero() && latest.Before(cutoff) {
			t.SetStatus(userID, models.StatusAway)
		}
	}
}

func (t *PresenceTracker) ensureLocked(userID int64) *presenceState {
	st, ok := t.states[userID]
	if !ok {
		st = &presenceState{status: models.StatusOffline}
		t.states[userID] = st
	}
	return st
}

func (t *PresenceTracker) emit(userID int64, status string) {
	observability.IncPresenceTransition(status)
	t.hub.BroadcastAll(models.Event{
		Type:   models.EventPresence,
		UserID: userID,
		Status: status,
	})

	ctx, cancel := context.WithTimeout(context.Background(), statusWriteBudget)
	defer cancel()
	if err := t.store.UpdateStatus(ctx, userID, status); err != nil {
		log.Printf("presence status write failed user=%d status=%s: %v", userID, status, err)
	}
}
