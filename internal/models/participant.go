package models

// Role tags a session participant with its station-side function.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleActor     Role = "actor"
	RoleEvaluator Role = "evaluator"
)

// CanReleaseData reports whether the role may release printed materials.
// Only the actor hands out impressos; the evaluator scores but does not.
func (r Role) CanReleaseData() bool {
	return r == RoleActor
}

// CanScore reports whether the role may reveal the PEP or push score updates.
func (r Role) CanScore() bool {
	return r == RoleActor || r == RoleEvaluator
}

// Participant is one connected identity inside a session.
type Participant struct {
	UserID      string
	Role        Role
	DisplayName string
	IsReady     bool
	Conn        Conn
}

// Info returns the wire view of the participant sent in roster broadcasts.
func (p *Participant) Info() ParticipantInfo {
	return ParticipantInfo{
		UserID:      p.UserID,
		Role:        string(p.Role),
		DisplayName: p.DisplayName,
		IsReady:     p.IsReady,
	}
}

// ParticipantInfo is the roster entry shape broadcast to the room.
type ParticipantInfo struct {
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	IsReady     bool   `json:"isReady"`
}
