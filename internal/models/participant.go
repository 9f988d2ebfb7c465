package models

import "time"

// Participant is a named attendee of a session. Names are unique within a session.
type Participant struct {
	ID             int64     `json:"participant_id"`
	SessionID      int64     `json:"session_id"`
	Name           string    `json:"name"`
	RemainingVotes int       `json:"remaining_votes"`
	IsAdmin        bool      `json:"is_admin"`
	IsModerator    bool      `json:"is_moderator"`
	JoinedAt       time.Time `json:"joined_at"`
}

// IsStaff reports whether the participant may run the session (admin or moderator).
func (p *Participant) IsStaff() bool {
	return p.IsAdmin || p.IsModerator
}

// TimeVote values.
const (
	VoteYes = "yes"
	VoteNo  = "no"
)

// TimeVoteCounts tallies the time-extension poll.
type TimeVoteCounts struct {
	Yes int `json:"yes"`
	No  int `json:"no"`
}
