package capture

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/colsign/colsign-go/internal/conf"
	"github.com/colsign/colsign-go/internal/errors"
)

// Snapshot is a read-only view of a session handed to callers.
type Snapshot struct {
	ID               string        `json:"id"`
	UserID           uint          `json:"user_id"`
	SignID           uint          `json:"sign_id"`
	SignName         string        `json:"sign_name"`
	SignType         string        `json:"sign_type"`
	State            State         `json:"state"`
	CountdownSeconds float64       `json:"countdown_seconds"`
	RecordSeconds    float64       `json:"record_seconds"`
	Remaining        time.Duration `json:"-"`
}

// Manager owns the live capture sessions and serializes their transitions.
type Manager struct {
	settings *conf.Settings
	sessions map[string]*Session
	mutex    sync.Mutex

	// now is replaceable for tests
	now func() time.Time
}

// NewManager creates a session manager and starts the idle-session sweeper.
func NewManager(settings *conf.Settings) *Manager {
	m := &Manager{
		settings: settings,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	m.StartCleanup(settings.Capture.SessionTTL)
	return m
}

// Create opens a new capture session for a contributor and sign. The
// recording window is fixed by the sign category and cannot be changed for
// the life of the session.
func (m *Manager) Create(userID, signID uint, signName, signType string) (Snapshot, error) {
	window := m.settings.CaptureWindow(signType)
	if window <= 0 {
		return Snapshot{}, errors.Newf("no capture window configured for sign type %s", signType).
			Category(errors.CategoryCapture).
			Component("capture").
			Context("sign_type", signType).
			Build()
	}

	now := m.now()
	session := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		SignID:    signID,
		SignName:  signName,
		SignType:  signType,
		state:     StateCameraOff,
		window:    window,
		createdAt: now,
		touchedAt: now,
	}

	m.mutex.Lock()
	m.sessions[session.ID] = session
	m.mutex.Unlock()

	return snapshotOf(session, now), nil
}

// Get returns the current view of a session, advancing clock-driven phases
// first.
func (m *Manager) Get(sessionID string) (Snapshot, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, err := m.locked(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	now := m.now()
	session.advance(now)
	return snapshotOf(session, now), nil
}

// EnableCamera acknowledges that the contributor's camera preview is live.
// Recording cannot start before this.
func (m *Manager) EnableCamera(sessionID string) (Snapshot, error) {
	return m.transition(sessionID, "enable-camera", func(s *Session, now time.Time) error {
		if s.state != StateCameraOff {
			return invalidTransition(s.ID, s.state, "enable-camera")
		}
		s.state = StateCameraOn
		return nil
	})
}

// Start begins the countdown. It is only valid once the camera is on; the
// countdown and the recording that follows both run for the fixed window.
func (m *Manager) Start(sessionID string) (Snapshot, error) {
	return m.transition(sessionID, "start", func(s *Session, now time.Time) error {
		if s.state != StateCameraOn {
			return invalidTransition(s.ID, s.state, "start")
		}
		s.state = StateCountdown
		s.countdownEndsAt = now.Add(s.window)
		return nil
	})
}

// Discard drops the previewed clip and ends the session.
func (m *Manager) Discard(sessionID string) (Snapshot, error) {
	return m.transition(sessionID, "discard", func(s *Session, now time.Time) error {
		if s.state != StatePreview {
			return invalidTransition(s.ID, s.state, "discard")
		}
		s.state = StateDiscarded
		return nil
	})
}

// Retake returns a previewed session to the live-camera state for another
// attempt at the same sign.
func (m *Manager) Retake(sessionID string) (Snapshot, error) {
	return m.transition(sessionID, "retake", func(s *Session, now time.Time) error {
		if s.state != StatePreview {
			return invalidTransition(s.ID, s.state, "retake")
		}
		s.state = StateCameraOn
		s.countdownEndsAt = time.Time{}
		s.recordingEndsAt = time.Time{}
		return nil
	})
}

// BeginUpload moves a previewed session into the uploading state. Only one
// upload can be in flight per session; a second accept while uploading is
// refused.
func (m *Manager) BeginUpload(sessionID string) (Snapshot, error) {
	return m.transition(sessionID, "accept", func(s *Session, now time.Time) error {
		if s.state != StatePreview {
			return invalidTransition(s.ID, s.state, "accept")
		}
		s.state = StateUploading
		return nil
	})
}

// FinishUpload resolves an in-flight upload. On success the session is done;
// on failure it returns to preview so the clip can be accepted again or
// discarded.
func (m *Manager) FinishUpload(sessionID string, succeeded bool) (Snapshot, error) {
	return m.transition(sessionID, "finish-upload", func(s *Session, now time.Time) error {
		if s.state != StateUploading {
			return invalidTransition(s.ID, s.state, "finish-upload")
		}
		if succeeded {
			s.state = StateDone
		} else {
			s.state = StatePreview
		}
		return nil
	})
}

// transition runs fn on the named session under the lock, advancing
// clock-driven phases first.
func (m *Manager) transition(sessionID, operation string, fn func(*Session, time.Time) error) (Snapshot, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, err := m.locked(sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	now := m.now()
	session.advance(now)
	if err := fn(session, now); err != nil {
		return Snapshot{}, err
	}
	session.touch(now)
	return snapshotOf(session, now), nil
}

func (m *Manager) locked(sessionID string) (*Session, error) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, errors.Newf("capture session not found").
			Category(errors.CategoryNotFound).
			Component("capture").
			Context("session_id", sessionID).
			Build()
	}
	return session, nil
}

// StartCleanup starts a background goroutine that drops idle and finished
// sessions. Sessions with an upload in flight are never dropped.
func (m *Manager) StartCleanup(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for range ticker.C {
			m.cleanupExpired(ttl)
		}
	}()
}

func (m *Manager) cleanupExpired(ttl time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	for id, session := range m.sessions {
		if session.state == StateUploading {
			continue
		}
		terminal := session.state == StateDone || session.state == StateDiscarded
		if terminal || now.Sub(session.touchedAt) > ttl {
			delete(m.sessions, id)
		}
	}
}

func snapshotOf(s *Session, now time.Time) Snapshot {
	snap := Snapshot{
		ID:               s.ID,
		UserID:           s.UserID,
		SignID:           s.SignID,
		SignName:         s.SignName,
		SignType:         s.SignType,
		State:            s.state,
		CountdownSeconds: s.window.Seconds(),
		RecordSeconds:    s.window.Seconds(),
	}
	switch s.state {
	case StateCountdown:
		snap.Remaining = s.countdownEndsAt.Sub(now)
	case StateRecording:
		snap.Remaining = s.recordingEndsAt.Sub(now)
	}
	return snap
}
