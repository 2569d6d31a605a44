package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no live session matches an id or PIN.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPlayerNotFound is returned when a player id is unknown to the session.
	ErrPlayerNotFound = errors.New("player not found in session")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNotHost is returned when a non-host tries a host-only transition.
	ErrNotHost = errors.New("only the host may do this")
	// ErrAlreadyStarted is returned for a start on a session no longer waiting.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrSessionEnded is returned for joins, submits or transitions on an ended session.
	ErrSessionEnded = errors.New("session already ended")
	// ErrNicknameTaken is returned when a nickname collides with an active player.
	ErrNicknameTaken = errors.New("nickname already taken")
	// ErrNotAMember is returned when a kicked or departed player keeps acting.
	ErrNotAMember = errors.New("not an active member of this session")
	// ErrNotAcceptingAnswers is returned for submissions outside the running state.
	ErrNotAcceptingAnswers = errors.New("session is not accepting answers")
	// ErrQuestionNotActive is returned when a submission names a question other
	// than the one currently open.
	ErrQuestionNotActive = errors.New("question is not the active question")
	// ErrQuestionOutOfRange is returned for a next-question index beyond the quiz.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrAnswerMismatch is returned when an answer id does not belong to the question.
	ErrAnswerMismatch = errors.New("answer does not belong to question")
	// ErrPINTaken is returned by the registry when a PIN is claimed by a live session.
	ErrPINTaken = errors.New("pin already in use")
)

// ErrorCode buckets an expected error into the wire-level taxonomy reported to
// clients. Unknown errors are classified as internal.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrPlayerNotFound),
		errors.Is(err, ErrQuizNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyStarted),
		errors.Is(err, ErrSessionEnded),
		errors.Is(err, ErrNicknameTaken),
		errors.Is(err, ErrNotAcceptingAnswers),
		errors.Is(err, ErrPINTaken):
		return "conflict"
	case errors.Is(err, ErrNotHost), errors.Is(err, ErrNotAMember):
		return "forbidden"
	case errors.Is(err, ErrQuestionNotActive),
		errors.Is(err, ErrQuestionOutOfRange),
		errors.Is(err, ErrAnswerMismatch):
		return "invalid_input"
	default:
		return "internal"
	}
}
