package review

import "errors"

// Sentinel errors for the review package. Use errors.Is to check them.
var (
	// ErrNoWordsDue is returned by StartSession when nothing is due. It is informational.
	ErrNoWordsDue = errors.New("review: no words due")
	// ErrUnknownDeck and ErrUnknownWord are returned by stores for stale references.
	ErrUnknownDeck = errors.New("review: unknown deck")
	ErrUnknownWord = errors.New("review: unknown word")

	ErrSessionExhausted  = errors.New("review: session exhausted")
	ErrNoPendingQuestion = errors.New("review: no pending question")
	ErrSessionFinished   = errors.New("review: session finished")
	ErrInvalidState      = errors.New("review: invalid session state")
)
