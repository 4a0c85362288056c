package repository

import (
	"context"

	"quizblitz-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// QuestionRepository reads the question bank. The engine never writes it.
type QuestionRepository struct {
	Col *mongo.Collection
}

func NewQuestionRepository(db *mongo.Database) *QuestionRepository {
	return &QuestionRepository{Col: db.Collection("questions")}
}

// FindByAccessCode returns the enabled questions for an access code.
func (r *QuestionRepository) FindByAccessCode(ctx context.Context, accessCode string) ([]models.Question, error) {
	cur, err := r.Col.Find(ctx, bson.M{
		"accessCode": accessCode,
		"disabled":   bson.M{"$ne": true},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var questions []models.Question
	if err := cur.All(ctx, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// QuestionSet returns the playable snapshot of the access code's
// questions, in bank order.
func (r *QuestionRepository) QuestionSet(ctx context.Context, accessCode string) ([]models.SessionQuestion, error) {
	questions, err := r.FindByAccessCode(ctx, accessCode)
	if err != nil {
		return nil, err
	}
	snapshot := make([]models.SessionQuestion, 0, len(questions))
	for _, q := range questions {
		snapshot = append(snapshot, q.Snapshot())
	}
	return snapshot, nil
}

// AccessCodeRepository validates access codes against the catalog side of
// the platform.
type AccessCodeRepository struct {
	Col *mongo.Collection
}

func NewAccessCodeRepository(db *mongo.Database) *AccessCodeRepository {
	return &AccessCodeRepository{Col: db.Collection("accessCodes")}
}

// FindActive returns the access code document when it exists and is
// active, mongo.ErrNoDocuments otherwise.
func (r *AccessCodeRepository) FindActive(ctx context.Context, code string) (*models.AccessCode, error) {
	var ac models.AccessCode
	err := r.Col.FindOne(ctx, bson.M{"code": code, "isActive": true}).Decode(&ac)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrAccessCodeInvalid
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}
