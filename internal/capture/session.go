// Package capture tracks recording sessions for contributor video clips.
//
// A session walks a fixed path: the camera is enabled, a countdown runs, the
// clip records for a window fixed by the sign category, and the result lands
// in preview where the contributor either discards it or accepts it for
// upload. The countdown length equals the recording length so the countdown
// rehearses exactly how long the capture will run. Recording never stops
// early; the timed phases advance on the clock, not on client input.
package capture

import (
	"time"

	"github.com/colsign/colsign-go/internal/errors"
)

// State names the phase a capture session is in.
type State string

const (
	StateCameraOff State = "camera_off"
	StateCameraOn  State = "camera_on"
	StateCountdown State = "countdown"
	StateRecording State = "recording"
	StatePreview   State = "preview"
	StateUploading State = "uploading"
	StateDone      State = "done"
	StateDiscarded State = "discarded"
)

// Session is one capture attempt for one sign by one contributor. All access
// goes through the Manager, which holds the lock.
type Session struct {
	ID       string
	UserID   uint
	SignID   uint
	SignName string
	SignType string

	state  State
	window time.Duration

	countdownEndsAt time.Time
	recordingEndsAt time.Time

	createdAt time.Time
	touchedAt time.Time
}

// advance moves the session through the clock-driven phases. Countdown and
// recording end on their deadlines regardless of client requests.
func (s *Session) advance(now time.Time) {
	if s.state == StateCountdown && !now.Before(s.countdownEndsAt) {
		s.state = StateRecording
		s.recordingEndsAt = s.countdownEndsAt.Add(s.window)
	}
	if s.state == StateRecording && !now.Before(s.recordingEndsAt) {
		s.state = StatePreview
	}
}

func (s *Session) touch(now time.Time) {
	s.touchedAt = now
}

func invalidTransition(sessionID string, from State, operation string) error {
	return errors.Newf("operation %s not allowed in state %s", operation, from).
		Category(errors.CategoryState).
		Component("capture").
		Context("session_id", sessionID).
		Context("state", string(from)).
		Context("operation", operation).
		Build()
}
