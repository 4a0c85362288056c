package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quizblitz-service/internal/service"
)

// TimerControl is the slice of the timer registry the HTTP layer drives.
type TimerControl interface {
	StartQuiz(ctx context.Context, quizCode string) error
	Stop(quizCode string)
}

type SessionHandler struct {
	sessions  *service.SessionService
	timers    TimerControl
	jwtSecret string
}

func NewSessionHandler(sessions *service.SessionService, timers TimerControl, jwtSecret string) *SessionHandler {
	return &SessionHandler{sessions: sessions, timers: timers, jwtSecret: jwtSecret}
}

// Start launches the quiz: question snapshot, session at index 0, room
// to active, countdown running.
func (h *SessionHandler) Start(c *gin.Context) {
	var req struct {
		QuizCode string `json:"quizCode" binding:"required"`
		HostID   string `json:"hostId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format", "details": err.Error()})
		return
	}

	callerID, err := userIDFromRequest(c, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if callerID == "" {
		callerID = req.HostID
	}

	session, err := h.sessions.Start(c.Request.Context(), req.QuizCode, callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.timers.StartQuiz(c.Request.Context(), session.QuizCode); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":     session.ID,
		"quizCode":      session.QuizCode,
		"questionCount": len(session.Questions),
		"timerDuration": session.TimerDuration,
		"status":        session.Status,
	})
}

// Control multiplexes host actions over one endpoint, mirroring the
// client protocol: next-question and get-current-state.
func (h *SessionHandler) Control(c *gin.Context) {
	var req struct {
		QuizCode string `json:"quizCode" binding:"required"`
		Action   string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format", "details": err.Error()})
		return
	}

	switch req.Action {
	case "next-question":
		res, err := h.sessions.Advance(c.Request.Context(), req.QuizCode)
		if err != nil {
			respondError(c, err)
			return
		}
		if res.Finished {
			h.timers.Stop(req.QuizCode)
			c.JSON(http.StatusOK, gin.H{"finished": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"finished":       false,
			"questionIndex":  res.QuestionIndex,
			"question":       res.Question,
			"totalQuestions": res.TotalQuestions,
			"timerDuration":  res.TimerDuration,
		})
	case "get-current-state":
		state, err := h.sessions.CurrentState(c.Request.Context(), req.QuizCode)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action", "action": req.Action})
	}
}

// SubmitAnswer scores one submission. clientTimestamp is epoch
// milliseconds from the player's device; zero means unknown.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	var req struct {
		QuizCode        string `json:"quizCode" binding:"required"`
		PlayerID        string `json:"playerId" binding:"required"`
		QuestionIndex   *int   `json:"questionIndex" binding:"required"`
		Answer          string `json:"answer" binding:"required"`
		ClientTimestamp int64  `json:"clientTimestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format", "details": err.Error()})
		return
	}

	var clientTime time.Time
	if req.ClientTimestamp > 0 {
		clientTime = time.UnixMilli(req.ClientTimestamp)
	}

	res, err := h.sessions.SubmitAnswer(c.Request.Context(), req.QuizCode, req.PlayerID, *req.QuestionIndex, req.Answer, clientTime)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
