package models

import "errors"

// Repository errors shared across packages. Handlers map these to HTTP statuses.
var (
	ErrNotFound              = errors.New("not found")
	ErrNameTaken             = errors.New("name already taken in this session")
	ErrSessionCodeTaken      = errors.New("session code already in use")
	ErrAlreadyVoted          = errors.New("already voted on this question")
	ErrNoVotesRemaining      = errors.New("no votes remaining or participant not found")
	ErrQuestionNotActive     = errors.New("question is not active or not found")
	ErrTimeVoteInactive      = errors.New("time voting is not active for this session")
	ErrQuestionInputDisabled = errors.New("question submission is disabled")
	ErrEmailTaken            = errors.New("user already exists")
)
