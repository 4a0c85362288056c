package repository

import (
	"context"
	"time"

	"quizblitz-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventRepository stores the append-only quizEvents log. Entries are
// never mutated; both delivery modes replay them in _id order.
type EventRepository struct {
	Col *mongo.Collection
}

func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{Col: db.Collection("quizEvents")}
}

func (r *EventRepository) Append(ctx context.Context, event models.QuizEvent) (models.QuizEvent, error) {
	event.ID = primitive.NilObjectID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	res, err := r.Col.InsertOne(ctx, event)
	if err != nil {
		return event, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		event.ID = oid
	}
	return event, nil
}

// ListAfter returns up to limit events for the quiz code with _id greater
// than after, oldest first. Pass primitive.NilObjectID to read from the
// beginning of the log.
func (r *EventRepository) ListAfter(ctx context.Context, quizCode string, after primitive.ObjectID, limit int) ([]models.QuizEvent, error) {
	filter := bson.M{"quizCode": quizCode}
	if !after.IsZero() {
		filter["_id"] = bson.M{"$gt": after}
	}
	cur, err := r.Col.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []models.QuizEvent
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Watch opens a change stream over inserts for one quiz code. Only
// available against replica sets; callers probe once at startup and fall
// back to ListAfter polling when this errors.
func (r *EventRepository) Watch(ctx context.Context, quizCode string) (*mongo.ChangeStream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: "insert"},
			{Key: "fullDocument.quizCode", Value: quizCode},
		}}},
	}
	return r.Col.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
}

// DeleteFinishedBefore removes log entries older than the cutoff for the
// given quiz codes. Callers pass codes whose quiz has ended, so a quiz
// that outlives the retention window keeps its replay backlog.
func (r *EventRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time, quizCodes []string) (int64, error) {
	if len(quizCodes) == 0 {
		return 0, nil
	}
	res, err := r.Col.DeleteMany(ctx, bson.M{
		"quizCode":  bson.M{"$in": quizCodes},
		"timestamp": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
