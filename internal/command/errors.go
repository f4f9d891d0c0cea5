package command

import "fmt"

// IllegalStateError reports that the tree no longer matches what a command
// recorded, typically during undo or redo. It is fatal to the operation.
type IllegalStateError struct {
	Command Command
	Message string
	Details map[string]any
}

func (e *IllegalStateError) Error() string {
	kind := "unknown"
	if e.Command != nil {
		kind = e.Command.Kind().String()
	}
	return fmt.Sprintf("illegal command state (%s): %s", kind, e.Message)
}

func illegalState(cmd Command, msg string, details map[string]any) error {
	if m := cmd.base().env.Metrics; m != nil {
		m.IllegalState()
	}
	return &IllegalStateError{Command: cmd, Message: msg, Details: details}
}
