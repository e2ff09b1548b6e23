package stage

import "fmt"

// NodeExecutionError is a stage failure with enough context for the error log
// and for debugging prompt or schema problems. RawContent carries the model
// output when parsing or validation rejected it.
type NodeExecutionError struct {
	Step       string
	Reason     string
	RawContent string
	Err        error
}

func (e *NodeExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %s: %s: %v", e.Step, e.Reason, e.Err)
	}

	return fmt.Sprintf("stage %s: %s", e.Step, e.Reason)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}
