package models

import (
	"strconv"
	"time"
)

// Session statuses.
const (
	SessionStatusActive   = "active"
	SessionStatusFinished = "finished"
)

// SessionQuestion is the denormalized snapshot of a bank question taken
// at start time. Later edits to the question bank never reach an
// in-flight session.
type SessionQuestion struct {
	ID            string            `bson:"_id" json:"id"`
	Question      string            `bson:"question" json:"question"`
	Options       map[string]string `bson:"options" json:"options"`
	CorrectAnswer string            `bson:"correctAnswer" json:"correctAnswer,omitempty"`
	Explanation   string            `bson:"explanation" json:"explanation,omitempty"`
	Difficulty    string            `bson:"difficulty" json:"difficulty"`
}

// Public strips the fields that must never reach a non-host participant
// while the question is still open.
func (q SessionQuestion) Public() SessionQuestion {
	q.CorrectAnswer = ""
	q.Explanation = ""
	return q
}

// AnswerRecord is the scored outcome of one (player, question) pair.
// First submission wins; the record is never overwritten.
type AnswerRecord struct {
	PlayerID      string    `bson:"playerId" json:"playerId"`
	QuestionIndex int       `bson:"questionIndex" json:"questionIndex"`
	Answer        string    `bson:"answer" json:"answer"`
	IsCorrect     bool      `bson:"isCorrect" json:"isCorrect"`
	Score         int       `bson:"score" json:"score"`
	ResponseTime  int64     `bson:"responseTime" json:"responseTime"` // milliseconds
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
}

// QuestionResults aggregates what happened during one question, revealed
// to everyone once the question closes.
type QuestionResults struct {
	QuestionIndex   int            `bson:"questionIndex" json:"questionIndex"`
	CorrectAnswer   string         `bson:"correctAnswer" json:"correctAnswer"`
	Explanation     string         `bson:"explanation" json:"explanation"`
	AnswerBreakdown map[string]int `bson:"answerBreakdown" json:"answerBreakdown"`
	TotalAnswers    int            `bson:"totalAnswers" json:"totalAnswers"`
}

// QuizSession is the live run of a started quiz. currentQuestionIndex
// only moves forward, bounded by [0, len(questions)]; reaching the upper
// bound finishes the session. Every mutating write carries a precondition
// on the current index or status, so concurrent writers cannot
// double-advance.
type QuizSession struct {
	ID                   string                             `bson:"_id,omitempty" json:"id"`
	QuizCode             string                             `bson:"quizCode" json:"quizCode"`
	AccessCode           string                             `bson:"accessCode" json:"accessCode"`
	Questions            []SessionQuestion                  `bson:"questions" json:"questions"`
	CurrentQuestionIndex int                                `bson:"currentQuestionIndex" json:"currentQuestionIndex"`
	Status               string                             `bson:"status" json:"status"`
	TimerDuration        int                                `bson:"timerDuration" json:"timerDuration"`
	TimeRemaining        int                                `bson:"timeRemaining" json:"timeRemaining"`
	QuestionStartedAt    time.Time                          `bson:"questionStartedAt" json:"questionStartedAt"`
	PlayerAnswers        map[string]map[string]AnswerRecord `bson:"playerAnswers" json:"playerAnswers"`
	QuestionResults      []QuestionResults                  `bson:"questionResults,omitempty" json:"questionResults,omitempty"`
	Version              int64                              `bson:"version" json:"version"`
	StartedAt            time.Time                          `bson:"startedAt" json:"startedAt"`
	FinishedAt           *time.Time                         `bson:"finishedAt,omitempty" json:"finishedAt,omitempty"`
}

// AnswerKey is the map key for one question inside PlayerAnswers. Mongo
// map keys must be strings, so indexes are stored as "q<N>".
func AnswerKey(questionIndex int) string {
	return "q" + strconv.Itoa(questionIndex)
}

// HasAnswered reports whether the player already has a record for the
// given question.
func (s *QuizSession) HasAnswered(playerID string, questionIndex int) bool {
	byPlayer, ok := s.PlayerAnswers[playerID]
	if !ok {
		return false
	}
	_, ok = byPlayer[AnswerKey(questionIndex)]
	return ok
}

// CurrentQuestion returns the open question, or false once the session
// has run past the last one.
func (s *QuizSession) CurrentQuestion() (SessionQuestion, bool) {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return SessionQuestion{}, false
	}
	return s.Questions[s.CurrentQuestionIndex], true
}
