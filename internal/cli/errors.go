package cli

import (
	"errors"
	"fmt"
)

var ErrUsage = errors.New("cli usage error")

// usageError is an error the user can fix by changing flags, config or inputs.
type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func usageErrorf(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}
