// Package timer runs one countdown loop per active quiz code. The loop
// is the sole writer of timeRemaining and the only caller of automatic
// advances; every write is guarded by the session's status and question
// index, so a torn-down or superseded timer can never touch state it no
// longer owns.
package timer

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"quizblitz-service/internal/metrics"
	"quizblitz-service/internal/models"
	"quizblitz-service/internal/service"
)

// Engine is the slice of the session service the timer drives.
type Engine interface {
	Session(ctx context.Context, quizCode string) (*models.QuizSession, error)
	PersistTimeRemaining(ctx context.Context, quizCode string, questionIndex, remaining int) (bool, error)
	EndQuestion(ctx context.Context, quizCode string, questionIndex int) error
	Advance(ctx context.Context, quizCode string) (service.AdvanceResult, error)
}

// Service owns the registry of running timers. The map is the only
// process-wide timer state; each entry's lifecycle is tied 1:1 to its
// session's active window and nothing here outlives a quiz.
type Service struct {
	engine      Engine
	events      service.EventRecorder
	tick        time.Duration
	questionGap time.Duration

	mu     sync.Mutex
	active map[string]*quizTimer
}

type quizTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(engine Engine, events service.EventRecorder, tick, questionGap time.Duration) *Service {
	if events == nil {
		events = service.NopRecorder{}
	}
	if tick <= 0 {
		tick = time.Second
	}
	return &Service{
		engine:      engine,
		events:      events,
		tick:        tick,
		questionGap: questionGap,
		active:      map[string]*quizTimer{},
	}
}

// StartQuiz begins the countdown loop for an active session. Starting an
// already-running quiz code is a no-op.
func (s *Service) StartQuiz(ctx context.Context, quizCode string) error {
	session, err := s.engine.Session(ctx, quizCode)
	if err != nil {
		return err
	}
	if session.Status != models.SessionStatusActive {
		return models.ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.active[quizCode]; running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t := &quizTimer{cancel: cancel, done: make(chan struct{})}
	s.active[quizCode] = t
	metrics.ActiveTimers.Inc()

	go s.run(runCtx, quizCode, t)
	return nil
}

// Stop tears down the timer for a quiz code. Idempotent; returns once
// the loop has exited, after which no further writes are attributable to
// this timer.
func (s *Service) Stop(quizCode string) {
	s.mu.Lock()
	t, ok := s.active[quizCode]
	s.mu.Unlock()
	if !ok {
		return
	}
	t.cancel()
	<-t.done
}

// StopAll tears down every running timer; used on shutdown.
func (s *Service) StopAll() {
	s.mu.Lock()
	timers := make([]*quizTimer, 0, len(s.active))
	for _, t := range s.active {
		timers = append(timers, t)
	}
	s.mu.Unlock()
	for _, t := range timers {
		t.cancel()
		<-t.done
	}
}

// Running reports whether a timer loop exists for the quiz code.
func (s *Service) Running(quizCode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[quizCode]
	return ok
}

func (s *Service) run(ctx context.Context, quizCode string, t *quizTimer) {
	defer func() {
		s.mu.Lock()
		delete(s.active, quizCode)
		s.mu.Unlock()
		metrics.ActiveTimers.Dec()
		close(t.done)
	}()

	for {
		session, err := s.engine.Session(ctx, quizCode)
		if err != nil || session.Status != models.SessionStatusActive {
			return
		}
		index := session.CurrentQuestionIndex
		remaining := session.TimeRemaining
		if remaining <= 0 {
			remaining = session.TimerDuration
		}

		outcome := s.countDown(ctx, quizCode, index, remaining)
		switch outcome {
		case countdownCancelled:
			return
		case countdownSuperseded:
			// Another writer moved the cursor; loop and adopt the
			// session's new state.
			continue
		case countdownExpired:
			if err := s.engine.EndQuestion(ctx, quizCode, index); err != nil &&
				!errors.Is(err, models.ErrSessionNotFound) &&
				!errors.Is(err, models.ErrQuestionClosed) {
				log.Printf("[TIMER] end question failed for %s q%d: %v", quizCode, index, err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.questionGap):
			}

			res, err := s.engine.Advance(ctx, quizCode)
			switch {
			case errors.Is(err, models.ErrConflict):
				// Someone advanced first; that is not a fault, just
				// re-read on the next cycle.
				log.Printf("[TIMER] advance conflict for %s, resyncing", quizCode)
				metrics.AdvanceConflicts.Inc()
				continue
			case err != nil:
				return
			case res.Finished:
				return
			}
		}
	}
}

type countdownOutcome int

const (
	countdownExpired countdownOutcome = iota
	countdownSuperseded
	countdownCancelled
)

// countDown decrements once per tick, persisting the authoritative value
// and mirroring it into the event log. A failed precondition means the
// question moved on underneath us.
func (s *Service) countDown(ctx context.Context, quizCode string, questionIndex, remaining int) countdownOutcome {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return countdownCancelled
		case <-ticker.C:
			remaining--
			if remaining < 0 {
				remaining = 0
			}

			owned, err := s.engine.PersistTimeRemaining(ctx, quizCode, questionIndex, remaining)
			if err != nil {
				log.Printf("[TIMER] persist tick failed for %s: %v", quizCode, err)
				continue
			}
			if !owned {
				return countdownSuperseded
			}

			s.events.Record(ctx, quizCode, models.EventTimerUpdate, models.TimerUpdateData{
				QuestionIndex: questionIndex,
				TimeRemaining: remaining,
			})

			if remaining == 0 {
				return countdownExpired
			}
		}
	}
}
