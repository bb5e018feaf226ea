package cache

import (
	"encoding/json"
	"errors"
	"fmt"
)

// The two failure kinds the cache and limiter boundaries distinguish.
// Both are logged and mapped to a safe default (miss or allow), never
// returned to the request path.
var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrSerialization    = errors.New("serialization failure")
)

// Classify wraps a raw failure with the boundary error kind so log
// output and tests can tell an unreachable store from a bad payload.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var marshalErr *json.MarshalerError
	var unsupported *json.UnsupportedTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.As(err, &marshalErr) || errors.As(err, &unsupported) {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
