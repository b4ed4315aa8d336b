package utils

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// PanicError wraps a panic value as an error
type PanicError struct {
	Value      interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// RecoverWithCallback recovers from a panic and calls the callback with the error.
// Useful when you can't use the error return pattern.
func RecoverWithCallback(callback func(error)) {
	if r := recover(); r != nil {
		err := newPanicError(r)
		if callback != nil {
			callback(err)
		}
	}
}

func newPanicError(r interface{}) *PanicError {
	stack := string(debug.Stack())
	zap.L().Error("Recovered from panic", zap.Any("panic", r), zap.String("stack", stack))
	return &PanicError{
		Value:      r,
		StackTrace: stack,
	}
}
