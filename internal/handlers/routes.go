package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the public surface under /quizblitz, plus the
// operational endpoints at the root.
func RegisterRoutes(r *gin.Engine, rooms *RoomHandler, sessions *SessionHandler, streams *StreamHandler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	qb := r.Group("/quizblitz")
	{
		qb.POST("/create-room", rooms.CreateRoom)
		qb.POST("/join", rooms.Join)
		qb.POST("/start", sessions.Start)
		qb.POST("/control", sessions.Control)
		qb.POST("/submit-answer", sessions.SubmitAnswer)
		qb.GET("/room/:quizCode", rooms.GetRoom)
		// Distinct prefixes: gin's router rejects a static segment
		// shadowing a wildcard at the same position.
		qb.GET("/events/:quizCode", streams.Events)
		qb.GET("/session-events/:quizCode", streams.SessionEvents)
		qb.GET("/room-events/:quizCode", streams.RoomEvents)
	}
}
