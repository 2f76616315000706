package classifier

import "fmt"

// AuthError reports that the proxy could not obtain a bearer token for
// the upstream vision service.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("vision auth failed: %s", e.Message)
}

// RemoteError reports a transport failure, a non-success status, or a
// malformed body from the proxy or the upstream vision service.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("vision request failed: %s", e.Message)
}

// EmptyResultError reports a well-formed response with zero usable
// annotations.
type EmptyResultError struct{}

func (e *EmptyResultError) Error() string {
	return "vision service returned no annotations"
}

// ModelNotLoadedError reports an inference attempt before a successful
// model load.
type ModelNotLoadedError struct{}

func (e *ModelNotLoadedError) Error() string {
	return "local model not loaded"
}

// InferenceError reports a runtime failure while resizing, normalizing,
// or executing the local model.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("local inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
