package models

import "time"

// Session is one Q&A event, joined by its short code.
type Session struct {
	ID                     int64      `json:"session_id"`
	Code                   string     `json:"session_code"`
	CreatedBy              string     `json:"created_by"`
	AdminID                *int64     `json:"admin_id"`
	IsActive               bool       `json:"is_active"`
	TimerStart             *time.Time `json:"timer_start_timestamp"`
	TimerEnd               *time.Time `json:"timer_end_timestamp"`
	TimerDurationSeconds   int        `json:"timer_duration_seconds"`
	TimeVoteActive         bool       `json:"time_vote_active"`
	GrabAttentionTriggered *string    `json:"grab_attention_triggered"`
	ReportGenerated        bool       `json:"report_generated"`
	ReportKey              *string    `json:"-"`
	QuestionInputEnabled   bool       `json:"is_question_input_enabled"`
	DiscussionStarted      bool       `json:"is_discussion_started"`
	QuestionsSorted        bool       `json:"is_questions_sorted"`
	CreatedAt              time.Time  `json:"created_at"`
}

// RemainingSeconds returns the whole seconds left on the timer at now, or nil
// when no timer is running or a time vote is already open.
func (s *Session) RemainingSeconds(now time.Time) *int {
	if s.TimerEnd == nil || s.TimeVoteActive {
		return nil
	}
	left := int(s.TimerEnd.Sub(now) / time.Second)
	if left < 0 {
		left = 0
	}
	return &left
}

// TimerInfo is the timer block of a session snapshot.
type TimerInfo struct {
	RemainingSeconds     *int `json:"remainingSeconds"`
	IsTimeVoteActive     bool `json:"isTimeVoteActive"`
	TimerDurationSeconds int  `json:"timerDurationSeconds"`
}

// TimeVoteInfo is the time-extension poll block of a session snapshot.
type TimeVoteInfo struct {
	Votes    TimeVoteCounts `json:"votes"`
	HasVoted bool           `json:"hasVoted"`
}

// Snapshot is the full polled view of an active session.
type Snapshot struct {
	Session                *Session      `json:"session"`
	Participants           []Participant `json:"participants"`
	Questions              []Question    `json:"questions"`
	ActiveQuestion         *Question     `json:"activeQuestion"`
	FinishedQuestions      []Question    `json:"finishedQuestions"`
	Replies                []Reply       `json:"replies"`
	TimerInfo              TimerInfo     `json:"timerInfo"`
	TimeVoteInfo           TimeVoteInfo  `json:"timeVoteInfo"`
	GrabAttentionTriggered *string       `json:"grabAttentionTriggered"`
	ReportGenerated        bool          `json:"reportGenerated"`
	IsQuestionInputEnabled bool          `json:"isQuestionInputEnabled"`
	IsDiscussionStarted    bool          `json:"isDiscussionStarted"`
	IsQuestionsSorted      bool          `json:"isQuestionsSorted"`
}

// Board is the participant and question state of a session, loaded together for a snapshot.
type Board struct {
	Participants []Participant
	Pending      []Question
	Active       *Question
	Finished     []Question
	Replies      []Reply
}
