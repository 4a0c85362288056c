package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"quizblitz-service/internal/models"
	"quizblitz-service/internal/service"
)

const testSecret = "test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// In-memory stores with the same conditional-write behavior as the
// Mongo repositories.

type memRooms struct {
	mu    sync.Mutex
	rooms map[string]*models.QuizRoom
	seq   int
}

func newMemRooms() *memRooms { return &memRooms{rooms: map[string]*models.QuizRoom{}} }

func (f *memRooms) Insert(_ context.Context, room *models.QuizRoom) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.rooms[room.QuizCode]; exists {
		return "", models.ErrDuplicateCode
	}
	f.seq++
	room.ID = "room-" + strconv.Itoa(f.seq)
	clone := *room
	f.rooms[room.QuizCode] = &clone
	return room.ID, nil
}

func (f *memRooms) FindByCode(_ context.Context, quizCode string) (*models.QuizRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[quizCode]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	clone := *room
	clone.Players = append([]models.Player(nil), room.Players...)
	return &clone, nil
}

func (f *memRooms) AppendPlayer(_ context.Context, quizCode string, player models.Player) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[quizCode]
	if !ok {
		return false, nil
	}
	for _, p := range room.Players {
		if p.ID == player.ID {
			return false, nil
		}
	}
	room.Players = append(room.Players, player)
	return true, nil
}

func (f *memRooms) SetStatus(_ context.Context, quizCode, fromStatus, toStatus string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[quizCode]
	if !ok || room.Status != fromStatus {
		return false, nil
	}
	room.Status = toStatus
	return true, nil
}

func (f *memRooms) IncrementScore(_ context.Context, quizCode, playerID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[quizCode]
	if !ok {
		return models.ErrRoomNotFound
	}
	for i := range room.Players {
		if room.Players[i].ID == playerID {
			room.Players[i].Score += delta
		}
	}
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.QuizSession
}

func newMemSessions() *memSessions { return &memSessions{sessions: map[string]*models.QuizSession{}} }

func (f *memSessions) Insert(_ context.Context, session *models.QuizSession) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.sessions[session.QuizCode]; exists {
		return "", models.ErrQuizAlreadyStarted
	}
	session.ID = "session-" + session.QuizCode
	clone := *session
	f.sessions[session.QuizCode] = &clone
	return session.ID, nil
}

func (f *memSessions) FindByCode(_ context.Context, quizCode string) (*models.QuizSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[quizCode]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	clone := *session
	clone.Questions = append([]models.SessionQuestion(nil), session.Questions...)
	return &clone, nil
}

func (f *memSessions) AdvanceQuestion(_ context.Context, quizCode string, fromIndex int, startedAt time.Time, timerDuration int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[quizCode]
	if !ok || session.Status != models.SessionStatusActive || session.CurrentQuestionIndex != fromIndex {
		return false, nil
	}
	session.CurrentQuestionIndex = fromIndex + 1
	session.QuestionStartedAt = startedAt
	session.TimeRemaining = timerDuration
	return true, nil
}

func (f *memSessions) Finish(_ context.Context, quizCode string, fromIndex int, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[quizCode]
	if !ok || session.Status != models.SessionStatusActive || session.CurrentQuestionIndex != fromIndex {
		return false, nil
	}
	session.Status = models.SessionStatusFinished
	return true, nil
}

func (f *memSessions) RecordAnswer(_ context.Context, quizCode string, record models.AnswerRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[quizCode]
	if !ok {
		return false, nil
	}
	if session.PlayerAnswers == nil {
		session.PlayerAnswers = map[string]map[string]models.AnswerRecord{}
	}
	key := models.AnswerKey(record.QuestionIndex)
	byPlayer, ok := session.PlayerAnswers[record.PlayerID]
	if !ok {
		byPlayer = map[string]models.AnswerRecord{}
		session.PlayerAnswers[record.PlayerID] = byPlayer
	}
	if _, exists := byPlayer[key]; exists {
		return false, nil
	}
	byPlayer[key] = record
	return true, nil
}

func (f *memSessions) SetTimeRemaining(_ context.Context, quizCode string, questionIndex, remaining int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[quizCode]
	if !ok || session.Status != models.SessionStatusActive || session.CurrentQuestionIndex != questionIndex {
		return false, nil
	}
	session.TimeRemaining = remaining
	return true, nil
}

func (f *memSessions) AppendQuestionResults(_ context.Context, quizCode string, results models.QuestionResults) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[quizCode]
	if !ok {
		return false, models.ErrSessionNotFound
	}
	if session.Status != models.SessionStatusActive || session.CurrentQuestionIndex != results.QuestionIndex {
		return false, nil
	}
	session.QuestionResults = append(session.QuestionResults, results)
	session.TimeRemaining = 0
	return true, nil
}

type staticQuestions struct{ questions []models.SessionQuestion }

func (s staticQuestions) QuestionSet(context.Context, string) ([]models.SessionQuestion, error) {
	return s.questions, nil
}

type staticCodes struct{ valid string }

func (s staticCodes) FindActive(_ context.Context, code string) (*models.AccessCode, error) {
	if code == s.valid {
		return &models.AccessCode{Code: code, IsActive: true}, nil
	}
	return nil, models.ErrAccessCodeInvalid
}

type fakeTimers struct {
	mu      sync.Mutex
	started []string
	stopped []string
}

func (t *fakeTimers) StartQuiz(_ context.Context, quizCode string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = append(t.started, quizCode)
	return nil
}

func (t *fakeTimers) Stop(quizCode string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = append(t.stopped, quizCode)
}

// chanSource replays a fixed script of events for whatever quiz code is
// subscribed, then closes.
type chanSource struct{ events []models.QuizEvent }

func (s chanSource) Mode() string { return "scripted" }

func (s chanSource) Subscribe(ctx context.Context, quizCode string, after primitive.ObjectID) <-chan models.QuizEvent {
	ch := make(chan models.QuizEvent, len(s.events))
	for _, ev := range s.events {
		ev.QuizCode = quizCode
		ch <- ev
	}
	close(ch)
	return ch
}

type fixture struct {
	engine   *gin.Engine
	timers   *fakeTimers
	roomSvc  *service.RoomService
	quizCode string
}

func newFixture(t *testing.T, streamEvents ...models.QuizEvent) *fixture {
	t.Helper()

	questions := []models.SessionQuestion{
		{ID: "q0", Question: "first", Options: map[string]string{"A": "a", "B": "b"}, CorrectAnswer: "B", Difficulty: "easy"},
		{ID: "q1", Question: "second", Options: map[string]string{"A": "a", "B": "b"}, CorrectAnswer: "A", Difficulty: "hard"},
	}
	rooms := newMemRooms()
	sessions := newMemSessions()
	timers := &fakeTimers{}

	roomSvc := service.NewRoomService(rooms, staticCodes{valid: "JOIN123"}, service.NopRecorder{})
	sessionSvc := service.NewSessionService(sessions, rooms, staticQuestions{questions: questions}, service.NopRecorder{})

	engine := gin.New()
	RegisterRoutes(engine,
		NewRoomHandler(roomSvc, testSecret),
		NewSessionHandler(sessionSvc, timers, testSecret),
		NewStreamHandler(chanSource{events: streamEvents}, sessionSvc, roomSvc, testSecret, time.Minute),
	)

	room, err := roomSvc.CreateRoom(context.Background(), "host-1", "JOIN123", "", 30)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return &fixture{engine: engine, timers: timers, roomSvc: roomSvc, quizCode: room.QuizCode}
}

func (f *fixture) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

// sseRecorder adds the http.CloseNotifier method gin's Stream requires,
// which httptest.ResponseRecorder does not implement.
type sseRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *sseRecorder) CloseNotify() <-chan bool { return r.closed }

func (f *fixture) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(&sseRecorder{ResponseRecorder: w, closed: make(chan bool)}, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestCreateJoinAndLookup(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, "/quizblitz/create-room", gin.H{"accessCode": "JOIN123", "hostId": "host-2", "timerDuration": 20})
	if w.Code != http.StatusOK {
		t.Fatalf("create-room status %d: %s", w.Code, w.Body.String())
	}
	created := decode(t, w)
	quizCode, _ := created["quizCode"].(string)
	if len(quizCode) != 6 {
		t.Fatalf("expected 6-char quiz code, got %q", quizCode)
	}

	w = f.post(t, "/quizblitz/join", gin.H{"quizCode": quizCode, "playerName": "Ada"})
	if w.Code != http.StatusOK {
		t.Fatalf("join status %d: %s", w.Code, w.Body.String())
	}
	joined := decode(t, w)
	if joined["playerId"] == "" || joined["playerCount"].(float64) != 1 {
		t.Fatalf("unexpected join response: %v", joined)
	}

	w = f.get(t, "/quizblitz/room/"+quizCode, "")
	if w.Code != http.StatusOK {
		t.Fatalf("room lookup status %d", w.Code)
	}
	room := decode(t, w)
	if room["status"] != models.RoomStatusWaiting {
		t.Fatalf("expected waiting room, got %v", room["status"])
	}
}

func TestCreateRoomUnknownAccessCode(t *testing.T) {
	f := newFixture(t)
	w := f.post(t, "/quizblitz/create-room", gin.H{"accessCode": "WRONG", "hostId": "host-2"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStartIsHostOnly(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, "/quizblitz/start", gin.H{"quizCode": f.quizCode, "hostId": "impostor"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-host, got %d", w.Code)
	}

	w = f.post(t, "/quizblitz/start", gin.H{"quizCode": f.quizCode, "hostId": "host-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("start status %d: %s", w.Code, w.Body.String())
	}
	started := decode(t, w)
	if started["questionCount"].(float64) != 2 {
		t.Fatalf("expected questionCount 2, got %v", started["questionCount"])
	}
	f.timers.mu.Lock()
	defer f.timers.mu.Unlock()
	if len(f.timers.started) != 1 || f.timers.started[0] != f.quizCode {
		t.Fatalf("timer not started: %v", f.timers.started)
	}
}

func TestControlNextQuestionUntilFinished(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/quizblitz/start", gin.H{"quizCode": f.quizCode, "hostId": "host-1"})

	w := f.post(t, "/quizblitz/control", gin.H{"quizCode": f.quizCode, "action": "next-question"})
	if w.Code != http.StatusOK {
		t.Fatalf("advance status %d: %s", w.Code, w.Body.String())
	}
	advanced := decode(t, w)
	if advanced["finished"].(bool) || advanced["questionIndex"].(float64) != 1 {
		t.Fatalf("unexpected advance response: %v", advanced)
	}
	if strings.Contains(w.Body.String(), `"correctAnswer"`) {
		t.Fatal("advance response leaked the correct answer")
	}

	w = f.post(t, "/quizblitz/control", gin.H{"quizCode": f.quizCode, "action": "next-question"})
	finished := decode(t, w)
	if finished["finished"] != true {
		t.Fatalf("expected finished, got %v", finished)
	}
	f.timers.mu.Lock()
	defer f.timers.mu.Unlock()
	if len(f.timers.stopped) != 1 {
		t.Fatalf("timer not stopped on finish: %v", f.timers.stopped)
	}
}

func TestControlGetCurrentState(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/quizblitz/start", gin.H{"quizCode": f.quizCode, "hostId": "host-1"})

	w := f.post(t, "/quizblitz/control", gin.H{"quizCode": f.quizCode, "action": "get-current-state"})
	if w.Code != http.StatusOK {
		t.Fatalf("state status %d: %s", w.Code, w.Body.String())
	}
	state := decode(t, w)
	if state["status"] != models.SessionStatusActive || state["currentQuestionIndex"].(float64) != 0 {
		t.Fatalf("unexpected state: %v", state)
	}
	if strings.Contains(w.Body.String(), `"correctAnswer"`) {
		t.Fatal("state response leaked the correct answer")
	}
}

func TestControlUnknownAction(t *testing.T) {
	f := newFixture(t)
	w := f.post(t, "/quizblitz/control", gin.H{"quizCode": f.quizCode, "action": "reboot"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSubmitAnswerStatusMapping(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, "/quizblitz/join", gin.H{"quizCode": f.quizCode, "playerName": "Ada", "playerId": "player-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("join status %d", w.Code)
	}
	f.post(t, "/quizblitz/start", gin.H{"quizCode": f.quizCode, "hostId": "host-1"})

	// Stale index: question 1 is not open yet.
	w = f.post(t, "/quizblitz/submit-answer", gin.H{
		"quizCode": f.quizCode, "playerId": "player-1", "questionIndex": 1, "answer": "A",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for stale index, got %d: %s", w.Code, w.Body.String())
	}

	w = f.post(t, "/quizblitz/submit-answer", gin.H{
		"quizCode": f.quizCode, "playerId": "player-1", "questionIndex": 0, "answer": "B",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("submit status %d: %s", w.Code, w.Body.String())
	}
	res := decode(t, w)
	if res["isCorrect"] != true || res["score"].(float64) <= 0 {
		t.Fatalf("unexpected submit result: %v", res)
	}

	w = f.post(t, "/quizblitz/submit-answer", gin.H{
		"quizCode": f.quizCode, "playerId": "player-1", "questionIndex": 0, "answer": "B",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate answer, got %d", w.Code)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testSecret, "host-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "host-1" {
		t.Fatalf("expected host-1, got %q", claims.UserID)
	}
	if _, err := ValidateToken("other-secret", token); err == nil {
		t.Fatal("token validated under wrong secret")
	}
}

func TestRoomEventsRequiresHostToken(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/quizblitz/room-events/"+f.quizCode, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	stranger, _ := GenerateToken(testSecret, "stranger", time.Hour)
	w = f.get(t, "/quizblitz/room-events/"+f.quizCode, stranger)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-host, got %d", w.Code)
	}
}

func TestEventsStreamReplaysAndStopsAtQuizEnd(t *testing.T) {
	f := newFixture(t,
		models.QuizEvent{ID: primitive.NewObjectID(), Type: models.EventQuizStarted, Timestamp: time.Now()},
		models.QuizEvent{ID: primitive.NewObjectID(), Type: models.EventQuizEnded, Timestamp: time.Now()},
	)

	w := f.get(t, "/quizblitz/events/"+f.quizCode, "")
	if w.Code != http.StatusOK {
		t.Fatalf("events status %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event:connected") {
		t.Fatalf("missing connected frame: %q", body)
	}
	startIdx := strings.Index(body, string(models.EventQuizStarted))
	endIdx := strings.Index(body, string(models.EventQuizEnded))
	if startIdx < 0 || endIdx < 0 || endIdx < startIdx {
		t.Fatalf("events missing or out of order: %q", body)
	}
}

func TestSessionEventsStreamSendsProjection(t *testing.T) {
	f := newFixture(t,
		models.QuizEvent{ID: primitive.NewObjectID(), Type: models.EventQuestionStarted, Timestamp: time.Now()},
		models.QuizEvent{ID: primitive.NewObjectID(), Type: models.EventQuizEnded, Timestamp: time.Now()},
	)
	f.post(t, "/quizblitz/start", gin.H{"quizCode": f.quizCode, "hostId": "host-1"})

	w := f.get(t, "/quizblitz/session-events/"+f.quizCode, "")
	if w.Code != http.StatusOK {
		t.Fatalf("session events status %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event:session_update") {
		t.Fatalf("missing session_update frame: %q", body)
	}
	if strings.Contains(body, `"correctAnswer"`) {
		t.Fatal("session stream leaked the correct answer")
	}
}
