package domain

import "errors"

var (
	// ErrFetchFailed wraps any failure reported by the question provider.
	ErrFetchFailed = errors.New("question fetch failed")
	// ErrNoQuestions is returned when the provider answers with an empty set.
	ErrNoQuestions = errors.New("no questions available")
	// ErrSessionClosed is returned for actions on a torn down session.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrSessionFinished is returned when a finished session receives an action.
	ErrSessionFinished = errors.New("quiz session finished")
	// ErrNotInProgress is returned when an action needs a running quiz.
	ErrNotInProgress = errors.New("quiz session not in progress")
	// ErrUnknownOption is returned when a selection is not one of the options.
	ErrUnknownOption = errors.New("option not offered for question")
	// ErrMissingUser is returned when no user identity can be resolved.
	ErrMissingUser = errors.New("user identity missing")
	// ErrInvalidCategory indicates a category outside the supported set.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidDifficulty indicates a difficulty other than easy, medium or hard.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrEngineClosed is returned when a session is started during shutdown.
	ErrEngineClosed = errors.New("quiz engine shut down")
	// ErrPersistFailed wraps score store write failures.
	ErrPersistFailed = errors.New("score persist failed")
)
