package models

import "time"

// Room statuses. A room moves waiting -> active -> finished and is never
// deleted by the engine; archival happens outside of it.
const (
	RoomStatusWaiting  = "waiting"
	RoomStatusActive   = "active"
	RoomStatusFinished = "finished"
)

// Player origin channels.
const (
	PlayerSourceWeb      = "web"
	PlayerSourceTelegram = "telegram"
)

type Player struct {
	ID       string    `bson:"id" json:"id"`
	Name     string    `bson:"name" json:"name"`
	Score    int       `bson:"score" json:"score"`
	JoinedAt time.Time `bson:"joinedAt" json:"joinedAt"`
	Source   string    `bson:"source,omitempty" json:"source,omitempty"`
}

// QuizRoom is the pre-game and persistent membership container for one
// quiz code. Player entries are append-only; a player id appears at most
// once (joins with a known id are idempotent).
type QuizRoom struct {
	ID            string     `bson:"_id,omitempty" json:"id"`
	QuizCode      string     `bson:"quizCode" json:"quizCode"`
	AccessCode    string     `bson:"accessCode" json:"accessCode"`
	HostID        string     `bson:"hostId" json:"hostId"`
	TimerDuration int        `bson:"timerDuration" json:"timerDuration"`
	Status        string     `bson:"status" json:"status"`
	Players       []Player   `bson:"players" json:"players"`
	CreatedAt     time.Time  `bson:"createdAt" json:"createdAt"`
	StartedAt     *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	FinishedAt    *time.Time `bson:"finishedAt,omitempty" json:"finishedAt,omitempty"`
}

// FindPlayer returns the player with the given id, if present.
func (r *QuizRoom) FindPlayer(playerID string) (*Player, bool) {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return &r.Players[i], true
		}
	}
	return nil, false
}
