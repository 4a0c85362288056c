package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"quizblitz-service/internal/models"
)

// fakeRoomStore mimics the Mongo room collection, including the
// conditional-update semantics the services depend on.
type fakeRoomStore struct {
	mu    sync.Mutex
	rooms map[string]*models.QuizRoom
	seq   int
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{rooms: map[string]*models.QuizRoom{}}
}

func (f *fakeRoomStore) Insert(_ context.Context, room *models.QuizRoom) (string, error) {
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

func (f *fakeRoomStore) FindByCode(_ context.Context, quizCode string) (*models.QuizRoom, error) {
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

func (f *fakeRoomStore) AppendPlayer(_ context.Context, quizCode string, player models.Player) (bool, error) {
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

func (f *fakeRoomStore) SetStatus(_ context.Context, quizCode, fromStatus, toStatus string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[quizCode]
	if !ok || room.Status != fromStatus {
		return false, nil
	}
	room.Status = toStatus
	switch toStatus {
	case models.RoomStatusActive:
		room.StartedAt = &at
	case models.RoomStatusFinished:
		room.FinishedAt = &at
	}
	return true, nil
}

func (f *fakeRoomStore) IncrementScore(_ context.Context, quizCode, playerID string, delta int) error {
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

// fakeSessionStore mirrors the conditional writes of the Mongo session
// repository: zero-modified results for failed preconditions, atomic
// insert-if-absent for answers.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.QuizSession
	seq      int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*models.QuizSession{}}
}

func (f *fakeSessionStore) Insert(_ context.Context, session *models.QuizSession) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.sessions[session.QuizCode]; exists {
		return "", models.ErrQuizAlreadyStarted
	}
	f.seq++
	session.ID = "session-" + strconv.Itoa(f.seq)
	clone := cloneSession(session)
	f.sessions[session.QuizCode] = clone
	return session.ID, nil
}

func (f *fakeSessionStore) FindByCode(_ context.Context, quizCode string) (*models.QuizSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[quizCode]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (f *fakeSessionStore) AdvanceQuestion(_ context.Context, quizCode string, fromIndex int, startedAt time.Time, timerDuration int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[quizCode]
	if !ok || session.Status != models.SessionStatusActive || session.CurrentQuestionIndex != fromIndex {
		return false, nil
	}
	session.CurrentQuestionIndex = fromIndex + 1
	session.QuestionStartedAt = startedAt
	session.TimeRemaining = timerDuration
	session.Version++
	return true, nil
}

func (f *fakeSessionStore) Finish(_ context.Context, quizCode string, fromIndex int, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[quizCode]
	if !ok || session.Status != models.SessionStatusActive || session.CurrentQuestionIndex != fromIndex {
		return false, nil
	}
	session.Status = models.SessionStatusFinished
	session.FinishedAt = &at
	session.Version++
	return true, nil
}

func (f *fakeSessionStore) RecordAnswer(_ context.Context, quizCode string, record models.AnswerRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[quizCode]
	if !ok {
		return false, nil
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

func (f *fakeSessionStore) SetTimeRemaining(_ context.Context, quizCode string, questionIndex, remaining int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[quizCode]
	if !ok || session.Status != models.SessionStatusActive || session.CurrentQuestionIndex != questionIndex {
		return false, nil
	}
	session.TimeRemaining = remaining
	return true, nil
}

func (f *fakeSessionStore) AppendQuestionResults(_ context.Context, quizCode string, results models.QuestionResults) (bool, error) {
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

func cloneSession(s *models.QuizSession) *models.QuizSession {
	clone := *s
	clone.Questions = append([]models.SessionQuestion(nil), s.Questions...)
	clone.PlayerAnswers = make(map[string]map[string]models.AnswerRecord, len(s.PlayerAnswers))
	for playerID, byPlayer := range s.PlayerAnswers {
		inner := make(map[string]models.AnswerRecord, len(byPlayer))
		for k, v := range byPlayer {
			inner[k] = v
		}
		clone.PlayerAnswers[playerID] = inner
	}
	return &clone
}

type staticQuestionSource struct {
	questions []models.SessionQuestion
}

func (s staticQuestionSource) QuestionSet(context.Context, string) ([]models.SessionQuestion, error) {
	return s.questions, nil
}

type staticAccessCodes struct{ codes map[string]bool }

func (s staticAccessCodes) FindActive(_ context.Context, code string) (*models.AccessCode, error) {
	if s.codes[code] {
		return &models.AccessCode{Code: code, IsActive: true}, nil
	}
	return nil, models.ErrAccessCodeInvalid
}

// recordingEvents captures emitted events for assertions.
type recordingEvents struct {
	mu     sync.Mutex
	events []models.QuizEvent
}

func (r *recordingEvents) Record(_ context.Context, quizCode string, eventType models.EventType, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, models.QuizEvent{QuizCode: quizCode, Type: eventType, Data: data, Timestamp: time.Now()})
}

func (r *recordingEvents) typesSeen() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]models.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func sampleQuestions(n int) []models.SessionQuestion {
	questions := make([]models.SessionQuestion, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, models.SessionQuestion{
			ID:            "q" + strconv.Itoa(i),
			Question:      "question " + strconv.Itoa(i),
			Options:       map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
			CorrectAnswer: "B",
			Difficulty:    "hard",
		})
	}
	return questions
}
