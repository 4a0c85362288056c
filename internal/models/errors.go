package models

import "errors"

var (
	// ErrRoomNotFound is returned when no room exists for a quiz code.
	ErrRoomNotFound = errors.New("quiz room not found")
	// ErrSessionNotFound is returned when a quiz has no live session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrAccessCodeInvalid is returned when an access code does not
	// resolve to an active question set.
	ErrAccessCodeInvalid = errors.New("invalid access code")
	// ErrDuplicateCode is returned when a generated quiz code collides;
	// callers retry with a fresh code.
	ErrDuplicateCode = errors.New("quiz code already in use")
	// ErrQuizAlreadyStarted rejects joins once the room left the
	// waiting state.
	ErrQuizAlreadyStarted = errors.New("quiz has already started or finished")
	// ErrUnauthorized is returned when a non-host calls a host-only
	// operation.
	ErrUnauthorized = errors.New("caller is not the quiz host")
	// ErrNoQuestions is returned when the access code resolves to an
	// empty question set.
	ErrNoQuestions = errors.New("no questions found for access code")
	// ErrConflict means an optimistic-concurrency precondition failed:
	// the state moved on, re-read instead of retrying the same write.
	ErrConflict = errors.New("quiz state changed by another writer")
	// ErrAlreadyAnswered enforces first-submission-wins per
	// (player, question) pair.
	ErrAlreadyAnswered = errors.New("answer already recorded for this question")
	// ErrQuestionClosed rejects answers for a question index that is no
	// longer the current one.
	ErrQuestionClosed = errors.New("question is no longer open")
	// ErrInvalidPlayerID rejects player ids that cannot be stored: the
	// id becomes part of a document field path, so '.' and '$' are
	// reserved.
	ErrInvalidPlayerID = errors.New("player id contains reserved characters")
)
