package types

import "fmt"

// RemoteErrorKind classifies why a remote lookup failed
type RemoteErrorKind string

const (
	// RemoteErrorNetwork covers transport failures: dial, timeout, reset
	RemoteErrorNetwork RemoteErrorKind = "network"

	// RemoteErrorStatus covers non-success responses from the service
	RemoteErrorStatus RemoteErrorKind = "status"

	// RemoteErrorMalformed covers responses missing required fields or not parseable
	RemoteErrorMalformed RemoteErrorKind = "malformed"
)

// RemoteError is returned by a RemoteClassifier when a lookup fails
type RemoteError struct {
	Kind       RemoteErrorKind
	Key        QueryKey
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("remote lookup %s failed (%s", e.Key, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsConnectivity reports whether the failure was in reaching the service
func (e *RemoteError) IsConnectivity() bool {
	return e.Kind == RemoteErrorNetwork || e.Kind == RemoteErrorStatus
}

// IsDataShape reports whether the service answered with an unusable payload
func (e *RemoteError) IsDataShape() bool {
	return e.Kind == RemoteErrorMalformed
}
