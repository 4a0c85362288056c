package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"quizblitz-service/internal/models"
)

const quizCodeLength = 6

// Letters and digits that survive being read out loud; no 0/O or 1/I.
const quizCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomService owns room creation and the player registry.
type RoomService struct {
	rooms       RoomStore
	accessCodes AccessCodeStore
	events      EventRecorder
}

func NewRoomService(rooms RoomStore, accessCodes AccessCodeStore, events EventRecorder) *RoomService {
	if events == nil {
		events = NopRecorder{}
	}
	return &RoomService{rooms: rooms, accessCodes: accessCodes, events: events}
}

// CreateRoom validates the access code and inserts a waiting room. An
// empty quizCode gets a generated one; collisions on generated codes are
// retried with a fresh code, collisions on caller-supplied codes surface
// as ErrDuplicateCode.
func (s *RoomService) CreateRoom(ctx context.Context, hostID, accessCode, quizCode string, timerDuration int) (*models.QuizRoom, error) {
	accessCode = strings.ToUpper(strings.TrimSpace(accessCode))
	if _, err := s.accessCodes.FindActive(ctx, accessCode); err != nil {
		return nil, err
	}

	if timerDuration <= 0 {
		timerDuration = 30
	}

	supplied := quizCode != ""
	attempts := 1
	if !supplied {
		quizCode = generateQuizCode()
		attempts = 5
	}

	for i := 0; i < attempts; i++ {
		room := &models.QuizRoom{
			QuizCode:      strings.ToUpper(strings.TrimSpace(quizCode)),
			AccessCode:    accessCode,
			HostID:        hostID,
			TimerDuration: timerDuration,
			Status:        models.RoomStatusWaiting,
			Players:       []models.Player{},
			CreatedAt:     time.Now(),
		}
		_, err := s.rooms.Insert(ctx, room)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, models.ErrDuplicateCode) {
			return nil, err
		}
		if supplied {
			return nil, models.ErrDuplicateCode
		}
		quizCode = generateQuizCode()
	}
	return nil, models.ErrDuplicateCode
}

// JoinResult is what a joining player gets back.
type JoinResult struct {
	Player      models.Player
	PlayerCount int
	Rejoined    bool
}

// Join appends a player to a waiting room. Late joins are allowed only
// when the embedding caller opts in. A join with a known player id is an
// idempotent success: no duplicate entry, existing score kept.
func (s *RoomService) Join(ctx context.Context, quizCode, playerName, playerID, source string, allowLate bool) (JoinResult, error) {
	quizCode = strings.ToUpper(strings.TrimSpace(quizCode))

	room, err := s.rooms.FindByCode(ctx, quizCode)
	if err != nil {
		return JoinResult{}, err
	}
	switch room.Status {
	case models.RoomStatusWaiting:
	case models.RoomStatusActive:
		if !allowLate {
			return JoinResult{}, models.ErrQuizAlreadyStarted
		}
	default:
		return JoinResult{}, models.ErrQuizAlreadyStarted
	}

	if playerID != "" {
		if !playerIDStorable(playerID) {
			return JoinResult{}, models.ErrInvalidPlayerID
		}
		if existing, ok := room.FindPlayer(playerID); ok {
			return JoinResult{Player: *existing, PlayerCount: len(room.Players), Rejoined: true}, nil
		}
	}
	if playerID == "" {
		playerID = generatePlayerID()
	}
	if source == "" {
		source = models.PlayerSourceWeb
	}

	player := models.Player{
		ID:       playerID,
		Name:     strings.TrimSpace(playerName),
		Score:    0,
		JoinedAt: time.Now(),
		Source:   source,
	}
	appended, err := s.rooms.AppendPlayer(ctx, quizCode, player)
	if err != nil {
		return JoinResult{}, err
	}
	count := len(room.Players)
	if appended {
		count++
	}
	return JoinResult{Player: player, PlayerCount: count, Rejoined: !appended}, nil
}

// Room returns the room snapshot for a quiz code.
func (s *RoomService) Room(ctx context.Context, quizCode string) (*models.QuizRoom, error) {
	return s.rooms.FindByCode(ctx, strings.ToUpper(strings.TrimSpace(quizCode)))
}

func generateQuizCode() string {
	b := make([]byte, quizCodeLength)
	for i := range b {
		b[i] = quizCodeAlphabet[rand.Intn(len(quizCodeAlphabet))]
	}
	return string(b)
}

// playerIDStorable rejects ids that would splice extra levels into the
// playerAnswers field path.
func playerIDStorable(id string) bool {
	return !strings.ContainsAny(id, ".$")
}

func generatePlayerID() string {
	return fmt.Sprintf("player_%d_%06d", time.Now().UnixMilli(), rand.Intn(1000000))
}
