// Package provider defines the error taxonomy shared by all external
// collaborators (file storage, embedding, reranking, chat models).
//
// Callers retry only what Classify deems transient; anything unrecognized is
// treated as permanent so unknown failures never loop forever.
package provider

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/minio/minio-go/v7"
	openai "github.com/sashabaranov/go-openai"
)

// Sentinel errors returned by storage providers. Both are permanent.
var (
	// ErrNotFound signals the referenced folder or file does not exist at
	// the provider.
	ErrNotFound = errors.New("provider: not found")

	// ErrAccessDenied signals the credentials lack access to the resource.
	ErrAccessDenied = errors.New("provider: access denied")
)

// Classify reports whether err is transient, meaning a retry with backoff is
// worthwhile. Rate limits, timeouts, connection failures and 5xx responses
// are transient; not-found, access-denied and other 4xx responses are
// permanent, as is anything Classify cannot identify.
func Classify(err error) (transient bool) {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccessDenied) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return transientStatus(reqErr.HTTPStatusCode)
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		return transientStatus(minioErr.StatusCode)
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return transientStatus(statusErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return false
}

// StatusError carries a raw HTTP status from providers without a typed
// client error, such as the rerank endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return http.StatusText(e.Code) + ": " + e.Body
	}
	return http.StatusText(e.Code)
}

func transientStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}
