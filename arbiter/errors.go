package arbiter

import "errors"

// ErrJudgeUnavailable is returned when the judge cannot be reached or fails
// after its own retries. No verdict is produced in that case.
var ErrJudgeUnavailable = errors.New("judge unavailable")

// IsJudgeUnavailable reports whether err came from a failed judge call.
func IsJudgeUnavailable(err error) bool {
	return errors.Is(err, ErrJudgeUnavailable)
}
