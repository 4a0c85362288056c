package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"quizblitz-service/internal/event"
	"quizblitz-service/internal/metrics"
	"quizblitz-service/internal/models"
	"quizblitz-service/internal/service"
)

const heartbeatInterval = 15 * time.Second

// StreamHandler serves the SSE surfaces over the event source. Every
// stream gets an initial connected frame, periodic heartbeats, and a
// hard lifetime cap; clients are expected to reconnect with the cursor
// from their last event.
type StreamHandler struct {
	source      event.Source
	sessions    *service.SessionService
	rooms       *service.RoomService
	jwtSecret   string
	maxLifetime time.Duration
}

func NewStreamHandler(source event.Source, sessions *service.SessionService, rooms *service.RoomService, jwtSecret string, maxLifetime time.Duration) *StreamHandler {
	if maxLifetime <= 0 {
		maxLifetime = 5 * time.Minute
	}
	return &StreamHandler{
		source:      source,
		sessions:    sessions,
		rooms:       rooms,
		jwtSecret:   jwtSecret,
		maxLifetime: maxLifetime,
	}
}

// Events replays the raw event log. Each frame's SSE event name is the
// quiz event type; the id field carries the cursor for reconnects.
func (h *StreamHandler) Events(c *gin.Context) {
	quizCode := strings.ToUpper(strings.TrimSpace(c.Param("quizCode")))
	if _, err := h.rooms.Room(c.Request.Context(), quizCode); err != nil {
		respondError(c, err)
		return
	}

	h.stream(c, quizCode, func(c *gin.Context, ev models.QuizEvent) bool {
		c.Render(-1, sse.Event{
			Id:    ev.ID.Hex(),
			Event: string(ev.Type),
			Data:  ev,
		})
		return ev.Type != models.EventQuizEnded
	})
}

// SessionEvents pushes the player-facing session projection whenever
// anything happens. The projection never contains the open question's
// correct answer.
func (h *StreamHandler) SessionEvents(c *gin.Context) {
	quizCode := strings.ToUpper(strings.TrimSpace(c.Param("quizCode")))
	state, err := h.sessions.CurrentState(c.Request.Context(), quizCode)
	if err != nil {
		respondError(c, err)
		return
	}

	h.stream(c, quizCode, func(c *gin.Context, ev models.QuizEvent) bool {
		state, err := h.sessions.CurrentState(c.Request.Context(), quizCode)
		if err != nil {
			c.SSEvent("error", gin.H{"error": err.Error()})
			return false
		}
		c.SSEvent("session_update", state)
		return ev.Type != models.EventQuizEnded
	}, initialFrame{event: "session_update", data: state})
}

// RoomEvents is the host's stream: membership and raw events together.
// Requires a bearer token for the room's host.
func (h *StreamHandler) RoomEvents(c *gin.Context) {
	quizCode := strings.ToUpper(strings.TrimSpace(c.Param("quizCode")))

	callerID, err := userIDFromRequest(c, h.jwtSecret)
	if err != nil || callerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	room, err := h.rooms.Room(c.Request.Context(), quizCode)
	if err != nil {
		respondError(c, err)
		return
	}
	if room.HostID != callerID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not the room host"})
		return
	}

	h.stream(c, quizCode, func(c *gin.Context, ev models.QuizEvent) bool {
		room, err := h.rooms.Room(c.Request.Context(), quizCode)
		if err != nil {
			c.SSEvent("error", gin.H{"error": err.Error()})
			return false
		}
		c.SSEvent("room_update", gin.H{"room": room, "event": ev})
		return ev.Type != models.EventQuizEnded
	}, initialFrame{event: "room_update", data: gin.H{"room": room}})
}

type initialFrame struct {
	event string
	data  interface{}
}

// stream runs the shared SSE loop: headers, connected frame, any extra
// initial frames, then events until the sink declines, the client goes
// away, or the lifetime cap fires.
func (h *StreamHandler) stream(c *gin.Context, quizCode string, sink func(*gin.Context, models.QuizEvent) bool, initial ...initialFrame) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	metrics.OpenStreams.Inc()
	defer metrics.OpenStreams.Dec()

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.maxLifetime)
	defer cancel()

	after := parseCursor(c.Query("after"))
	ch := h.source.Subscribe(ctx, quizCode, after)

	c.SSEvent("connected", gin.H{"quizCode": quizCode, "mode": h.source.Mode()})
	for _, frame := range initial {
		c.SSEvent(frame.event, frame.data)
	}
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-ch:
			if !open {
				return false
			}
			return sink(c, ev)
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"timestamp": time.Now().UnixMilli()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func parseCursor(raw string) primitive.ObjectID {
	if raw == "" {
		return primitive.NilObjectID
	}
	oid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}
