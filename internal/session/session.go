// Package session drives one client play-through of a weekly quiz:
// idle → in_progress → finished → submitted. There is no pause or resume;
// reloading the quiz always starts a fresh session.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weekly-trivia-service/internal/app"
	"weekly-trivia-service/internal/domain"
)

// State is the session's lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateInProgress State = "in_progress"
	StateFinished   State = "finished"
	StateSubmitted  State = "submitted"
)

const unanswered = -1

var (
	// ErrInvalidTransition is returned for any operation outside its phase.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrUnansweredQuestions blocks finishing while any answer is missing.
	ErrUnansweredQuestions = errors.New("all questions must be answered before finishing")
	// ErrAuthRequired gates submission, not play: anonymous play-throughs
	// are fine, the leaderboard is not.
	ErrAuthRequired = errors.New("submission requires an authenticated user")
)

// Submitter is the persistence boundary a finished session submits through.
type Submitter interface {
	Submit(ctx context.Context, attempt domain.Attempt) (app.SubmissionResult, error)
}

// Identity is the minimal authenticated-user projection a submission needs.
type Identity struct {
	UserID      string
	DisplayName string
	Username    string
	AvatarURL   string
}

// Session holds the state of one play-through.
type Session struct {
	payload domain.WeeklyTriviaPayload
	state   State
	now     func() time.Time

	current    int
	answers    []int
	startedAt  time.Time
	finishedAt time.Time
	score      int
	durationMs int64

	submission app.SubmissionResult
}

// New builds an idle session over a loaded payload.
func New(payload domain.WeeklyTriviaPayload) (*Session, error) {
	return NewWithClock(payload, time.Now)
}

// NewWithClock is test-only for deterministic timing.
func NewWithClock(payload domain.WeeklyTriviaPayload, now func() time.Time) (*Session, error) {
	if len(payload.Questions) != domain.QuestionCount {
		return nil, fmt.Errorf("payload must carry %d questions, got %d", domain.QuestionCount, len(payload.Questions))
	}
	answers := make([]int, len(payload.Questions))
	for i := range answers {
		answers[i] = unanswered
	}
	return &Session{
		payload: payload,
		state:   StateIdle,
		now:     now,
		answers: answers,
	}, nil
}

// State returns the current phase.
func (s *Session) State() State { return s.state }

// CurrentQuestion returns the question the player is on.
func (s *Session) CurrentQuestion() (int, domain.TriviaQuestion) {
	return s.current, s.payload.Questions[s.current]
}

// Start begins the play-through and records the start time.
func (s *Session) Start() error {
	if s.state != StateIdle {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateInProgress
	s.startedAt = s.now()
	return nil
}

// Answer records (or overwrites) the player's choice for a question.
// Answers may change any number of times before finishing.
func (s *Session) Answer(questionIndex, optionIndex int) error {
	if s.state != StateInProgress {
		return fmt.Errorf("%w: answer from %s", ErrInvalidTransition, s.state)
	}
	if questionIndex < 0 || questionIndex >= len(s.answers) {
		return fmt.Errorf("question index %d out of range", questionIndex)
	}
	if optionIndex < 0 || optionIndex >= domain.OptionCount {
		return fmt.Errorf("option index %d out of range", optionIndex)
	}
	s.answers[questionIndex] = optionIndex
	return nil
}

// Goto moves to a question; navigation is free in both directions.
func (s *Session) Goto(questionIndex int) error {
	if s.state != StateInProgress {
		return fmt.Errorf("%w: navigate from %s", ErrInvalidTransition, s.state)
	}
	if questionIndex < 0 || questionIndex >= len(s.answers) {
		return fmt.Errorf("question index %d out of range", questionIndex)
	}
	s.current = questionIndex
	return nil
}

// Answered reports whether every question has a recorded answer.
func (s *Session) Answered() bool {
	for _, a := range s.answers {
		if a == unanswered {
			return false
		}
	}
	return true
}

// Finish closes the play-through, computing score and duration. The duration
// is floored at 1ms so clock anomalies never produce a zero or negative
// value.
func (s *Session) Finish() error {
	if s.state != StateInProgress {
		return fmt.Errorf("%w: finish from %s", ErrInvalidTransition, s.state)
	}
	if !s.Answered() {
		return ErrUnansweredQuestions
	}
	s.finishedAt = s.now()
	s.state = StateFinished

	score := 0
	for i, q := range s.payload.Questions {
		if s.answers[i] == q.CorrectIndex {
			score++
		}
	}
	s.score = score

	s.durationMs = s.finishedAt.Sub(s.startedAt).Milliseconds()
	if s.durationMs < 1 {
		s.durationMs = 1
	}
	return nil
}

// Score is valid once the session is finished.
func (s *Session) Score() int { return s.score }

// DurationMs is valid once the session is finished.
func (s *Session) DurationMs() int64 { return s.durationMs }

// Elapsed samples the wall clock for timer display. It ticks while the
// session runs and freezes at the computed duration once finished.
func (s *Session) Elapsed() time.Duration {
	switch s.state {
	case StateInProgress:
		return s.now().Sub(s.startedAt)
	case StateFinished, StateSubmitted:
		return time.Duration(s.durationMs) * time.Millisecond
	default:
		return 0
	}
}

// Submit persists the finished result. It is one-shot: once a submission id
// exists, repeat calls return it without touching the boundary again, so a
// double click cannot create a duplicate attempt.
func (s *Session) Submit(ctx context.Context, submitter Submitter, who Identity) (app.SubmissionResult, error) {
	if s.state == StateSubmitted {
		return s.submission, nil
	}
	if s.state != StateFinished {
		return app.SubmissionResult{}, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, s.state)
	}
	if who.UserID == "" {
		return app.SubmissionResult{}, ErrAuthRequired
	}

	result, err := submitter.Submit(ctx, domain.Attempt{
		UserID:      who.UserID,
		DisplayName: who.DisplayName,
		Username:    who.Username,
		AvatarURL:   who.AvatarURL,
		WeekKey:     s.payload.WeekKey,
		Language:    s.payload.Language,
		Score:       s.score,
		DurationMs:  s.durationMs,
	})
	if err != nil {
		// Submission failure never erases a finished session; the player
		// keeps their local score and may retry.
		return app.SubmissionResult{}, err
	}
	s.submission = result
	s.state = StateSubmitted
	return result, nil
}
