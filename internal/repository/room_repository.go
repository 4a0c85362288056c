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

// RoomRepository stores quizRooms documents. Membership mutations are
// single atomic updates so concurrent joins and score increments from
// different players never clobber each other.
type RoomRepository struct {
	Col *mongo.Collection
}

func NewRoomRepository(db *mongo.Database) *RoomRepository {
	return &RoomRepository{Col: db.Collection("quizRooms")}
}

func (r *RoomRepository) Insert(ctx context.Context, room *models.QuizRoom) (string, error) {
	// String _id so the model decodes without an ObjectID field.
	room.ID = primitive.NewObjectID().Hex()
	doc := bson.M{
		"_id":           room.ID,
		"quizCode":      room.QuizCode,
		"accessCode":    room.AccessCode,
		"hostId":        room.HostID,
		"timerDuration": room.TimerDuration,
		"status":        room.Status,
		"players":       room.Players,
		"createdAt":     room.CreatedAt,
	}
	_, err := r.Col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return "", models.ErrDuplicateCode
	}
	if err != nil {
		return "", err
	}
	return room.ID, nil
}

func (r *RoomRepository) FindByCode(ctx context.Context, quizCode string) (*models.QuizRoom, error) {
	var room models.QuizRoom
	err := r.Col.FindOne(ctx, bson.M{"quizCode": quizCode}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// AppendPlayer pushes the player unless a player with the same id is
// already listed. Returns false when the push was skipped, which joins
// treat as idempotent success.
func (r *RoomRepository) AppendPlayer(ctx context.Context, quizCode string, player models.Player) (bool, error) {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{"quizCode": quizCode, "players.id": bson.M{"$ne": player.ID}},
		bson.M{
			"$push": bson.M{"players": player},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// SetStatus transitions the room only from the expected status, so two
// concurrent starts cannot both win.
func (r *RoomRepository) SetStatus(ctx context.Context, quizCode, fromStatus, toStatus string, at time.Time) (bool, error) {
	set := bson.M{"status": toStatus}
	switch toStatus {
	case models.RoomStatusActive:
		set["startedAt"] = at
	case models.RoomStatusFinished:
		set["finishedAt"] = at
	}
	res, err := r.Col.UpdateOne(ctx,
		bson.M{"quizCode": quizCode, "status": fromStatus},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// IncrementScore atomically bumps one player's total. Scoped to the
// matching array entry; concurrent submissions from different players
// cannot lose each other's updates.
func (r *RoomRepository) IncrementScore(ctx context.Context, quizCode, playerID string, delta int) error {
	_, err := r.Col.UpdateOne(ctx,
		bson.M{"quizCode": quizCode},
		bson.M{"$inc": bson.M{"players.$[p].score": delta}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"p.id": playerID}},
		}),
	)
	return err
}
