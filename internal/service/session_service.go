package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"quizblitz-service/internal/metrics"
	"quizblitz-service/internal/models"
	"quizblitz-service/internal/scoring"
)

// SessionService owns the session state machine: start, advance, answer
// submission, and the read-side projections both streams serve. All
// mutation goes through conditional store writes; there is no lock.
type SessionService struct {
	sessions  SessionStore
	rooms     RoomStore
	questions QuestionSource
	events    EventRecorder
}

func NewSessionService(sessions SessionStore, rooms RoomStore, questions QuestionSource, events EventRecorder) *SessionService {
	if events == nil {
		events = NopRecorder{}
	}
	return &SessionService{sessions: sessions, rooms: rooms, questions: questions, events: events}
}

// Start materializes the session for a waiting room: question set is
// snapshotted at this instant, cursor opens at 0, and the room flips to
// active. Host-only.
func (s *SessionService) Start(ctx context.Context, quizCode, callerID string) (*models.QuizSession, error) {
	quizCode = strings.ToUpper(strings.TrimSpace(quizCode))

	room, err := s.rooms.FindByCode(ctx, quizCode)
	if err != nil {
		return nil, err
	}
	if room.HostID != callerID {
		return nil, models.ErrUnauthorized
	}
	if room.Status != models.RoomStatusWaiting {
		return nil, models.ErrQuizAlreadyStarted
	}

	questions, err := s.questions.QuestionSet(ctx, room.AccessCode)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, models.ErrNoQuestions
	}

	now := time.Now()
	session := &models.QuizSession{
		QuizCode:             quizCode,
		AccessCode:           room.AccessCode,
		Questions:            questions,
		CurrentQuestionIndex: 0,
		Status:               models.SessionStatusActive,
		TimerDuration:        room.TimerDuration,
		TimeRemaining:        room.TimerDuration,
		QuestionStartedAt:    now,
		PlayerAnswers:        map[string]map[string]models.AnswerRecord{},
		Version:              1,
		StartedAt:            now,
	}
	if _, err := s.sessions.Insert(ctx, session); err != nil {
		if errors.Is(err, models.ErrQuizAlreadyStarted) {
			return s.adoptExistingSession(ctx, quizCode, err)
		}
		return nil, err
	}

	moved, err := s.rooms.SetStatus(ctx, quizCode, models.RoomStatusWaiting, models.RoomStatusActive, now)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, models.ErrConflict
	}

	s.events.Record(ctx, quizCode, models.EventQuizStarted, models.QuizStartedData{
		SessionID:      session.ID,
		TotalQuestions: len(questions),
		TimerDuration:  session.TimerDuration,
	})
	s.recordQuestionStarted(ctx, session, 0, now)

	return session, nil
}

// adoptExistingSession handles a start whose session insert lost to the
// unique quizCode index: either a concurrent start won, or an earlier
// start died after inserting the session but before flipping the room.
// Adopting the live session and completing the room flip makes a
// retried start converge instead of failing forever.
func (s *SessionService) adoptExistingSession(ctx context.Context, quizCode string, insertErr error) (*models.QuizSession, error) {
	existing, err := s.sessions.FindByCode(ctx, quizCode)
	if err != nil {
		return nil, insertErr
	}
	if existing.Status != models.SessionStatusActive {
		return nil, insertErr
	}
	if _, err := s.rooms.SetStatus(ctx, quizCode, models.RoomStatusWaiting, models.RoomStatusActive, existing.StartedAt); err != nil {
		return nil, err
	}
	return existing, nil
}

// AdvanceResult describes the state after a successful advance.
type AdvanceResult struct {
	Finished       bool
	QuestionIndex  int
	Question       models.SessionQuestion // correctAnswer stripped
	TotalQuestions int
	TimerDuration  int
}

// Advance moves the cursor forward exactly once, or finishes the quiz
// when the cursor runs past the last question. Exactly one of two racing
// calls wins; the loser gets ErrConflict and must re-read.
func (s *SessionService) Advance(ctx context.Context, quizCode string) (AdvanceResult, error) {
	quizCode = strings.ToUpper(strings.TrimSpace(quizCode))

	session, err := s.sessions.FindByCode(ctx, quizCode)
	if err != nil {
		return AdvanceResult{}, err
	}
	if session.Status != models.SessionStatusActive {
		return AdvanceResult{}, models.ErrSessionNotFound
	}

	now := time.Now()
	nextIndex := session.CurrentQuestionIndex + 1

	if nextIndex >= len(session.Questions) {
		moved, err := s.sessions.Finish(ctx, quizCode, session.CurrentQuestionIndex, now)
		if err != nil {
			return AdvanceResult{}, err
		}
		if !moved {
			return AdvanceResult{}, models.ErrConflict
		}
		if _, err := s.rooms.SetStatus(ctx, quizCode, models.RoomStatusActive, models.RoomStatusFinished, now); err != nil {
			return AdvanceResult{}, err
		}
		s.events.Record(ctx, quizCode, models.EventQuizEnded, models.QuizEndedData{
			TotalQuestions: len(session.Questions),
			FinishedAt:     now,
		})
		return AdvanceResult{Finished: true, TotalQuestions: len(session.Questions)}, nil
	}

	moved, err := s.sessions.AdvanceQuestion(ctx, quizCode, session.CurrentQuestionIndex, now, session.TimerDuration)
	if err != nil {
		return AdvanceResult{}, err
	}
	if !moved {
		return AdvanceResult{}, models.ErrConflict
	}

	s.recordQuestionStarted(ctx, session, nextIndex, now)

	return AdvanceResult{
		QuestionIndex:  nextIndex,
		Question:       session.Questions[nextIndex].Public(),
		TotalQuestions: len(session.Questions),
		TimerDuration:  session.TimerDuration,
	}, nil
}

// EndQuestion aggregates the answers for a closed question and records
// the reveal. The timer calls this when the countdown hits zero; results
// carry the correct answer, which is only now allowed out.
func (s *SessionService) EndQuestion(ctx context.Context, quizCode string, questionIndex int) error {
	quizCode = strings.ToUpper(strings.TrimSpace(quizCode))

	session, err := s.sessions.FindByCode(ctx, quizCode)
	if err != nil {
		return err
	}
	if questionIndex < 0 || questionIndex >= len(session.Questions) {
		return models.ErrQuestionClosed
	}
	question := session.Questions[questionIndex]

	breakdown := make(map[string]int, len(question.Options))
	for label := range question.Options {
		breakdown[label] = 0
	}
	total := 0
	key := models.AnswerKey(questionIndex)
	for _, byPlayer := range session.PlayerAnswers {
		record, ok := byPlayer[key]
		if !ok {
			continue
		}
		total++
		if _, known := breakdown[record.Answer]; known {
			breakdown[record.Answer]++
		}
	}

	results := models.QuestionResults{
		QuestionIndex:   questionIndex,
		CorrectAnswer:   question.CorrectAnswer,
		Explanation:     question.Explanation,
		AnswerBreakdown: breakdown,
		TotalAnswers:    total,
	}
	appended, err := s.sessions.AppendQuestionResults(ctx, quizCode, results)
	if err != nil {
		return err
	}
	if !appended {
		// The cursor already moved past this question; the reveal
		// belongs to a state that no longer exists.
		return models.ErrQuestionClosed
	}
	s.events.Record(ctx, quizCode, models.EventQuestionEnded, results)
	return nil
}

// SubmitResult is the scored outcome returned to the submitting player.
// The correct answer is revealed here because the player's question is
// now closed for them.
type SubmitResult struct {
	IsCorrect     bool   `json:"isCorrect"`
	Score         int    `json:"score"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
}

// SubmitAnswer validates, scores, and records one submission. Valid only
// while questionIndex is the open question and the player has no prior
// record for it; the first-wins guarantee is enforced by the store's
// insert-if-absent, not by the pre-check.
func (s *SessionService) SubmitAnswer(ctx context.Context, quizCode, playerID string, questionIndex int, answer string, clientTimestamp time.Time) (SubmitResult, error) {
	quizCode = strings.ToUpper(strings.TrimSpace(quizCode))
	if !playerIDStorable(playerID) {
		return SubmitResult{}, models.ErrInvalidPlayerID
	}

	session, err := s.sessions.FindByCode(ctx, quizCode)
	if err != nil {
		return SubmitResult{}, err
	}
	if session.Status != models.SessionStatusActive || questionIndex != session.CurrentQuestionIndex {
		return SubmitResult{}, models.ErrQuestionClosed
	}
	question := session.Questions[questionIndex]

	now := time.Now()
	if clientTimestamp.IsZero() {
		clientTimestamp = session.QuestionStartedAt
	}
	scored := scoring.Score(scoring.Input{
		Question:        question,
		Answer:          answer,
		ClientTimestamp: clientTimestamp,
		ReceivedAt:      now,
		TimerDuration:   time.Duration(session.TimerDuration) * time.Second,
	})

	record := models.AnswerRecord{
		PlayerID:      playerID,
		QuestionIndex: questionIndex,
		Answer:        answer,
		IsCorrect:     scored.IsCorrect,
		Score:         scored.Points,
		ResponseTime:  scored.ResponseTime.Milliseconds(),
		Timestamp:     now,
	}
	inserted, err := s.sessions.RecordAnswer(ctx, quizCode, record)
	if err != nil {
		return SubmitResult{}, err
	}
	if !inserted {
		return SubmitResult{}, models.ErrAlreadyAnswered
	}

	playerName := playerID
	if room, err := s.rooms.FindByCode(ctx, quizCode); err == nil {
		if player, ok := room.FindPlayer(playerID); ok {
			playerName = player.Name
		}
	}
	if scored.Points > 0 {
		if err := s.rooms.IncrementScore(ctx, quizCode, playerID, scored.Points); err != nil {
			return SubmitResult{}, err
		}
	}

	metrics.AnswersScored.WithLabelValues(strconv.FormatBool(scored.IsCorrect)).Inc()
	s.events.Record(ctx, quizCode, models.EventAnswerSubmitted, models.AnswerSubmittedData{
		PlayerID:     playerID,
		PlayerName:   playerName,
		IsCorrect:    scored.IsCorrect,
		Score:        scored.Points,
		ResponseTime: record.ResponseTime,
	})

	return SubmitResult{
		IsCorrect:     scored.IsCorrect,
		Score:         scored.Points,
		CorrectAnswer: question.CorrectAnswer,
		Explanation:   question.Explanation,
	}, nil
}

// Session returns the raw session document.
func (s *SessionService) Session(ctx context.Context, quizCode string) (*models.QuizSession, error) {
	return s.sessions.FindByCode(ctx, strings.ToUpper(strings.TrimSpace(quizCode)))
}

// PersistTimeRemaining writes one authoritative countdown tick, guarded
// on question index and active status.
func (s *SessionService) PersistTimeRemaining(ctx context.Context, quizCode string, questionIndex, remaining int) (bool, error) {
	return s.sessions.SetTimeRemaining(ctx, quizCode, questionIndex, remaining)
}

// SessionState is the projection served to players: by get-current-state,
// by the player-facing SSE stream, and (with host fields) by the host
// stream. currentQuestion never carries the correct answer.
type SessionState struct {
	Status               string                  `json:"status"`
	Players              []models.Player         `json:"players"`
	PlayerCount          int                     `json:"playerCount"`
	CurrentQuestion      *models.SessionQuestion `json:"currentQuestion"`
	CurrentQuestionIndex int                     `json:"currentQuestionIndex"`
	TotalQuestions       int                     `json:"totalQuestions"`
	TimerDuration        int                     `json:"timerDuration,omitempty"`
	TimeRemaining        int                     `json:"timeRemaining,omitempty"`
	QuestionStartedAt    *time.Time              `json:"questionStartedAt,omitempty"`
	Timestamp            time.Time               `json:"timestamp"`
}

// CurrentState builds the session projection. Before start it reflects
// the waiting room; afterwards room and session can never disagree about
// the cursor because the session document is the single source of truth
// for it.
func (s *SessionService) CurrentState(ctx context.Context, quizCode string) (SessionState, error) {
	quizCode = strings.ToUpper(strings.TrimSpace(quizCode))

	room, err := s.rooms.FindByCode(ctx, quizCode)
	if err != nil {
		return SessionState{}, err
	}

	state := SessionState{
		Status:               room.Status,
		Players:              room.Players,
		PlayerCount:          len(room.Players),
		CurrentQuestionIndex: -1,
		Timestamp:            time.Now(),
	}
	if room.Status == models.RoomStatusWaiting {
		return state, nil
	}

	session, err := s.sessions.FindByCode(ctx, quizCode)
	if err != nil {
		// Room already active but session not visible yet; serve the
		// room view rather than failing the stream.
		return state, nil
	}

	state.Status = session.Status
	state.CurrentQuestionIndex = session.CurrentQuestionIndex
	state.TotalQuestions = len(session.Questions)
	state.TimerDuration = session.TimerDuration
	state.TimeRemaining = session.TimeRemaining
	startedAt := session.QuestionStartedAt
	state.QuestionStartedAt = &startedAt
	if question, ok := session.CurrentQuestion(); ok {
		public := question.Public()
		state.CurrentQuestion = &public
	}
	return state, nil
}

func (s *SessionService) recordQuestionStarted(ctx context.Context, session *models.QuizSession, index int, at time.Time) {
	question := session.Questions[index]
	s.events.Record(ctx, session.QuizCode, models.EventQuestionStarted, models.QuestionStartedData{
		QuestionIndex:     index,
		Question:          question.Question,
		Options:           question.Options,
		TimeLimit:         session.TimerDuration,
		QuestionStartedAt: at,
	})
}
