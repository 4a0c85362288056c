package service

import (
	"context"
	"time"

	"quizblitz-service/internal/models"
)

// RoomStore is the persistence surface the room registry needs. The
// Mongo implementation lives in internal/repository; tests use fakes.
type RoomStore interface {
	Insert(ctx context.Context, room *models.QuizRoom) (string, error)
	FindByCode(ctx context.Context, quizCode string) (*models.QuizRoom, error)
	AppendPlayer(ctx context.Context, quizCode string, player models.Player) (bool, error)
	SetStatus(ctx context.Context, quizCode, fromStatus, toStatus string, at time.Time) (bool, error)
	IncrementScore(ctx context.Context, quizCode, playerID string, delta int) error
}

// SessionStore is the persistence surface of the session state machine.
// Conditional mutations report false when the precondition no longer
// held, which callers surface as a Conflict, never as a retry.
type SessionStore interface {
	Insert(ctx context.Context, session *models.QuizSession) (string, error)
	FindByCode(ctx context.Context, quizCode string) (*models.QuizSession, error)
	AdvanceQuestion(ctx context.Context, quizCode string, fromIndex int, startedAt time.Time, timerDuration int) (bool, error)
	Finish(ctx context.Context, quizCode string, fromIndex int, at time.Time) (bool, error)
	RecordAnswer(ctx context.Context, quizCode string, record models.AnswerRecord) (bool, error)
	SetTimeRemaining(ctx context.Context, quizCode string, questionIndex, remaining int) (bool, error)
	AppendQuestionResults(ctx context.Context, quizCode string, results models.QuestionResults) (bool, error)
}

// QuestionSource resolves an access code to a question snapshot. Backed
// directly by Mongo or by the redis cache layer in front of it.
type QuestionSource interface {
	QuestionSet(ctx context.Context, accessCode string) ([]models.SessionQuestion, error)
}

// AccessCodeStore validates access codes.
type AccessCodeStore interface {
	FindActive(ctx context.Context, code string) (*models.AccessCode, error)
}

// EventRecorder mirrors a state change into the event log. Recording is
// best-effort from the caller's point of view; failures are logged by
// the recorder and never fail the triggering operation.
type EventRecorder interface {
	Record(ctx context.Context, quizCode string, eventType models.EventType, data interface{})
}

// NopRecorder discards events; used in tests and before wiring.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, models.EventType, interface{}) {}
