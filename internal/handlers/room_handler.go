package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quizblitz-service/internal/service"
)

type RoomHandler struct {
	rooms     *service.RoomService
	jwtSecret string
}

func NewRoomHandler(rooms *service.RoomService, jwtSecret string) *RoomHandler {
	return &RoomHandler{rooms: rooms, jwtSecret: jwtSecret}
}

// CreateRoom opens a waiting room for an access code. The host comes
// from the bearer token when present, otherwise from the body.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		AccessCode    string `json:"accessCode" binding:"required"`
		QuizCode      string `json:"quizCode"`
		HostID        string `json:"hostId"`
		TimerDuration int    `json:"timerDuration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format", "details": err.Error()})
		return
	}

	hostID, err := userIDFromRequest(c, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if hostID == "" {
		hostID = req.HostID
	}
	if hostID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host id is required"})
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), hostID, req.AccessCode, req.QuizCode, req.TimerDuration)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"roomId":        room.ID,
		"quizCode":      room.QuizCode,
		"accessCode":    room.AccessCode,
		"timerDuration": room.TimerDuration,
		"status":        room.Status,
	})
}

// Join adds a player to a waiting room. Re-joining with a known playerId
// succeeds without creating a duplicate.
func (h *RoomHandler) Join(c *gin.Context) {
	var req struct {
		QuizCode   string `json:"quizCode" binding:"required"`
		PlayerName string `json:"playerName" binding:"required"`
		PlayerID   string `json:"playerId"`
		Source     string `json:"source"`
		AllowLate  bool   `json:"allowLateJoin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format", "details": err.Error()})
		return
	}

	res, err := h.rooms.Join(c.Request.Context(), req.QuizCode, req.PlayerName, req.PlayerID, req.Source, req.AllowLate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"playerId":    res.Player.ID,
		"playerName":  res.Player.Name,
		"playerCount": res.PlayerCount,
		"rejoined":    res.Rejoined,
	})
}

// GetRoom returns the room snapshot; the lobby polls this before start.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.rooms.Room(c.Request.Context(), c.Param("quizCode"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}
