package assess

import "fmt"

// ErrorKind classifies a failed call to the prediction service.
type ErrorKind int

const (
	// Unreachable covers transport failures and timeouts.
	Unreachable ErrorKind = iota + 1
	// ServerRejected is a non-2xx response.
	ServerRejected
	// Malformed is a 2xx response whose body is not a usable result.
	Malformed
)

func (k ErrorKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case ServerRejected:
		return "rejected"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

const (
	msgUnreachable = "Failed to connect to the server. Please make sure the backend is running."
	msgGeneric     = "Failed to get prediction"
)

// RequestError is returned by every Client call that does not yield a value.
type RequestError struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case ServerRejected:
		return fmt.Sprintf("%s: server returned HTTP %d: %s", e.Op, e.Status, e.Message)
	case Malformed:
		if e.Err != nil {
			return fmt.Sprintf("%s: malformed response: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Message)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// UserMessage is the text shown to the person who submitted the form.
func (e *RequestError) UserMessage() string {
	switch e.Kind {
	case Unreachable:
		return msgUnreachable
	case ServerRejected:
		return "Error: " + e.Message
	default:
		return "Error: " + msgGeneric
	}
}
