package risk

import (
	"errors"
	"fmt"
)

// ErrConstraint marks a trade attempt aborted because a broker or sanity
// constraint would be violated. The bot keeps running.
var ErrConstraint = errors.New("risk: constraint violated")

// Violation is one broken constraint. It matches ErrConstraint with
// errors.Is.
type Violation struct {
	Code string
	Msg  string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Msg)
}

func (v *Violation) Is(target error) bool {
	return target == ErrConstraint
}

func violation(code, format string, args ...any) error {
	return &Violation{Code: code, Msg: fmt.Sprintf(format, args...)}
}
