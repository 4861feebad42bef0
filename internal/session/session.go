// Package session holds the in-memory session store and the per-session
// countdown timer. Sessions live only for the lifetime of the process;
// abandoned ones are reclaimed by the idle sweeper.
package session

import (
	"time"

	"github.com/taiszocche92-glitch/backend/internal/models"
)

// MaxParticipants caps a session at the two parties of a station run.
const MaxParticipants = 2

// Session is one two-party exam-station room. All mutable fields are
// guarded by the owning Store; callers hold only the pointer and pass it
// back into Store methods.
type Session struct {
	ID        string
	StationID string
	CreatedAt time.Time

	participants map[string]*models.Participant
	countdown    *Countdown
	ended        bool
}

// Phase is the lifecycle stage of a session, derived from its data.
type Phase string

const (
	PhaseEmpty   Phase = "empty"
	PhaseWaiting Phase = "waiting_for_partner"
	PhaseFound   Phase = "partner_found"
	PhaseReady   Phase = "both_ready"
	PhaseRunning Phase = "running"
	PhaseEnded   Phase = "ended"
)

// phaseLocked derives the phase. Caller holds the store lock.
func (s *Session) phaseLocked() Phase {
	if s.countdown != nil && s.countdown.Active() {
		return PhaseRunning
	}
	if s.ended {
		return PhaseEnded
	}
	switch len(s.participants) {
	case 0:
		return PhaseEmpty
	case 1:
		return PhaseWaiting
	}
	for _, p := range s.participants {
		if !p.IsReady {
			return PhaseFound
		}
	}
	return PhaseReady
}

// rosterLocked snapshots the participant list. Caller holds the store lock.
func (s *Session) rosterLocked() []models.ParticipantInfo {
	roster := make([]models.ParticipantInfo, 0, len(s.participants))
	for _, p := range s.participants {
		roster = append(roster, p.Info())
	}
	return roster
}
