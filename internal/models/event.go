package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventType is the closed set of state changes the engine mirrors into
// the quizEvents log. Projections dispatch on it; anything outside this
// set is rejected at append time.
type EventType string

const (
	EventQuizStarted     EventType = "quiz-started"
	EventQuestionStarted EventType = "question-started"
	EventTimerUpdate     EventType = "timer-update"
	EventQuestionEnded   EventType = "question-ended"
	EventQuizEnded       EventType = "quiz-ended"
	EventAnswerSubmitted EventType = "answer-submitted"
)

// Valid reports whether t is one of the enumerated event kinds.
func (t EventType) Valid() bool {
	switch t {
	case EventQuizStarted, EventQuestionStarted, EventTimerUpdate,
		EventQuestionEnded, EventQuizEnded, EventAnswerSubmitted:
		return true
	}
	return false
}

// QuizEvent is one append-only log entry. Events are never mutated;
// insertion order per quiz code follows the store's id generation and is
// what both delivery modes replay.
type QuizEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	QuizCode  string             `bson:"quizCode" json:"quizCode"`
	Type      EventType          `bson:"type" json:"type"`
	Data      interface{}        `bson:"data" json:"data"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// QuizStartedData announces the materialized session.
type QuizStartedData struct {
	SessionID      string `json:"sessionId"`
	TotalQuestions int    `json:"totalQuestions"`
	TimerDuration  int    `json:"timerDuration"`
}

// QuestionStartedData carries the newly opened question. CorrectAnswer is
// deliberately absent; it is revealed only by QuestionEnded.
type QuestionStartedData struct {
	QuestionIndex     int               `json:"questionIndex"`
	Question          string            `json:"question"`
	Options           map[string]string `json:"options"`
	TimeLimit         int               `json:"timeLimit"`
	QuestionStartedAt time.Time         `json:"questionStartedAt"`
}

// TimerUpdateData is the authoritative countdown value for one tick.
type TimerUpdateData struct {
	QuestionIndex int `json:"questionIndex"`
	TimeRemaining int `json:"timeRemaining"`
}

// AnswerSubmittedData is the public trace of a scored submission. It
// exposes whether someone answered, not what the correct answer is.
type AnswerSubmittedData struct {
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	IsCorrect    bool   `json:"isCorrect"`
	Score        int    `json:"score"`
	ResponseTime int64  `json:"responseTime"`
}

// QuizEndedData closes the log for a quiz code.
type QuizEndedData struct {
	TotalQuestions int       `json:"totalQuestions"`
	FinishedAt     time.Time `json:"finishedAt"`
}
