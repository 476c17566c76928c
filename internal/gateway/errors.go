package gateway

import (
	"errors"
	"fmt"
)

// ErrAuthTokenMissing is returned when neither the cache, the session
// cookies nor the fallback pages yield the ik or at token an action needs.
var ErrAuthTokenMissing = errors.New("gmail action token unavailable")

// AuthError indicates that the Gmail session is missing or has expired.
// It is returned on 401/403 answers and on redirects to the sign-in page.
type AuthError struct {
	Op      string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Op, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is returned for any other non-2xx answer.
type StatusError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s (%s)", e.StatusCode, e.Method, e.URL, e.Op)
}
