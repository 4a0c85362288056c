package repository

import (
	"context"
	"time"

	"quizblitz-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// SessionRepository stores quizSessions documents. Every mutating write
// carries a precondition on the current question index and status; a
// zero-modified result means another writer got there first and the
// caller must re-read instead of retrying the same transition.
type SessionRepository struct {
	Col *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{Col: db.Collection("quizSessions")}
}

func (r *SessionRepository) Insert(ctx context.Context, session *models.QuizSession) (string, error) {
	session.ID = primitive.NewObjectID().Hex()
	doc := bson.M{
		"_id":                  session.ID,
		"quizCode":             session.QuizCode,
		"accessCode":           session.AccessCode,
		"questions":            session.Questions,
		"currentQuestionIndex": session.CurrentQuestionIndex,
		"status":               session.Status,
		"timerDuration":        session.TimerDuration,
		"timeRemaining":        session.TimeRemaining,
		"questionStartedAt":    session.QuestionStartedAt,
		"playerAnswers":        bson.M{},
		"version":              session.Version,
		"startedAt":            session.StartedAt,
	}
	_, err := r.Col.InsertOne(ctx, doc)
	// quizCode is unique: a duplicate here means a session already
	// exists for this quiz, so a racing or retried start loses cleanly.
	if mongo.IsDuplicateKeyError(err) {
		return "", models.ErrQuizAlreadyStarted
	}
	if err != nil {
		return "", err
	}
	return session.ID, nil
}

func (r *SessionRepository) FindByCode(ctx context.Context, quizCode string) (*models.QuizSession, error) {
	var session models.QuizSession
	err := r.Col.FindOne(ctx, bson.M{"quizCode": quizCode}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// AdvanceQuestion moves the cursor from fromIndex to fromIndex+1 when and
// only when the session is still active at fromIndex. The countdown is
// reset for the new question in the same write.
func (r *SessionRepository) AdvanceQuestion(ctx context.Context, quizCode string, fromIndex int, startedAt time.Time, timerDuration int) (bool, error) {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{
			"quizCode":             quizCode,
			"currentQuestionIndex": fromIndex,
			"status":               models.SessionStatusActive,
		},
		bson.M{
			"$set": bson.M{
				"currentQuestionIndex": fromIndex + 1,
				"questionStartedAt":    startedAt,
				"timeRemaining":        timerDuration,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Finish transitions the session to finished, guarded on the current
// index so a concurrent advance and a concurrent finish cannot both win.
func (r *SessionRepository) Finish(ctx context.Context, quizCode string, fromIndex int, at time.Time) (bool, error) {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{
			"quizCode":             quizCode,
			"currentQuestionIndex": fromIndex,
			"status":               models.SessionStatusActive,
		},
		bson.M{
			"$set": bson.M{
				"status":     models.SessionStatusFinished,
				"finishedAt": at,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// RecordAnswer inserts the answer record only if no record exists yet for
// that (player, question) pair: first submission wins, enforced by the
// store rather than a check-then-insert from the caller.
func (r *SessionRepository) RecordAnswer(ctx context.Context, quizCode string, record models.AnswerRecord) (bool, error) {
	field := "playerAnswers." + record.PlayerID + "." + models.AnswerKey(record.QuestionIndex)
	res, err := r.Col.UpdateOne(ctx,
		bson.M{
			"quizCode": quizCode,
			field:      bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{field: record}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// SetTimeRemaining persists the authoritative countdown for one tick.
// Guarded on index and status so a torn-down timer can never write into
// a question it no longer owns.
func (r *SessionRepository) SetTimeRemaining(ctx context.Context, quizCode string, questionIndex, remaining int) (bool, error) {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{
			"quizCode":             quizCode,
			"currentQuestionIndex": questionIndex,
			"status":               models.SessionStatusActive,
		},
		bson.M{"$set": bson.M{"timeRemaining": remaining}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// FinishedCodesBefore lists quiz codes whose session finished before the
// cutoff. Feeds the event janitor so only ended quizzes are swept.
func (r *SessionRepository) FinishedCodesBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	values, err := r.Col.Distinct(ctx, "quizCode", bson.M{
		"status":     models.SessionStatusFinished,
		"finishedAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(values))
	for _, v := range values {
		if code, ok := v.(string); ok {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// AppendQuestionResults records the per-question aggregate revealed at
// question end. Guarded on the closing question still being current so
// a late reveal cannot zero the countdown of a question that already
// advanced past it.
func (r *SessionRepository) AppendQuestionResults(ctx context.Context, quizCode string, results models.QuestionResults) (bool, error) {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{
			"quizCode":             quizCode,
			"currentQuestionIndex": results.QuestionIndex,
			"status":               models.SessionStatusActive,
		},
		bson.M{
			"$push": bson.M{"questionResults": results},
			"$set":  bson.M{"timeRemaining": 0},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}
