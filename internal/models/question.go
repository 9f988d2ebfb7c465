package models

import "time"

// QuestionStatus is the lifecycle stage of a question.
type QuestionStatus string

const (
	StatusPending  QuestionStatus = "pending"
	StatusActive   QuestionStatus = "active"
	StatusFinished QuestionStatus = "finished"
)

// Question represents an audience question in a session.
type Question struct {
	ID        int64          `json:"question_id"`
	SessionID int64          `json:"session_id"`
	Text      string         `json:"text"`
	Author    string         `json:"author"`
	Status    QuestionStatus `json:"status"`
	Votes     int            `json:"votes"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// QuestionAuth is what a permission check needs to know about a question and the requester.
type QuestionAuth struct {
	Author      string
	IsAdmin     bool
	IsModerator bool
}

// Reply is a comment on a question, shown under it while it is active.
type Reply struct {
	ID         int64     `json:"reply_id"`
	SessionID  int64     `json:"session_id"`
	QuestionID int64     `json:"question_id"`
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	IsPinned   bool      `json:"is_pinned"`
	CreatedAt  time.Time `json:"created_at"`
}
