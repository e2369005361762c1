package collaborator

import "fmt"

// Error describes a failed exchange with a collaborator service, either
// at the transport level or as a task the service itself reported failed.
type Error struct {
	Service    string
	Op         string
	StatusCode int // zero when no response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s", e.Service, e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }
