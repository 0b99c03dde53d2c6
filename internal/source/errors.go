package source

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned for 403 responses that are not rate limits.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited is returned for 403 responses with no remaining quota.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
)

// AuthError indicates that authentication has failed or expired.
// It is returned by clients when a 401 response is received.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// HTTPError is returned for non-2xx responses outside the classified set.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf(
		"unexpected status %d on %s %s: %s",
		e.StatusCode, e.Method, e.Path, e.Body,
	)
}

// NetworkError wraps transport failures, including timeouts.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ErrorKind classifies an error for presentation.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNoCredential
	KindUnauthorized
	KindForbidden
	KindRateLimited
	KindNotFound
	KindHTTP
	KindNetwork
	KindStore
	KindNotAuthenticated
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNoCredential:
		return "no_credential"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindHTTP:
		return "http"
	case KindNetwork:
		return "network"
	case KindStore:
		return "store"
	case KindNotAuthenticated:
		return "not_authenticated"
	default:
		return "other"
	}
}

// kindClassifier lets errors from other packages report their kind
// without this package importing them.
type kindClassifier interface {
	ErrorKind() ErrorKind
}

// KindOf classifies err into the error taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var kc kindClassifier
	if errors.As(err, &kc) {
		return kc.ErrorKind()
	}

	var httpErr *HTTPError
	var netErr *NetworkError
	switch {
	case IsAuthError(err):
		return KindUnauthorized
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &httpErr):
		return KindHTTP
	case errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	}
	return KindOther
}
