package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/minio/minio-go/v7"
	openai "github.com/sashabaranov/go-openai"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"not found sentinel", ErrNotFound, false},
		{"wrapped not found", fmt.Errorf("listing: %w", ErrNotFound), false},
		{"access denied", ErrAccessDenied, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"openai 429", &openai.APIError{HTTPStatusCode: 429}, true},
		{"openai 500", &openai.APIError{HTTPStatusCode: 500}, true},
		{"openai 400", &openai.APIError{HTTPStatusCode: 400}, false},
		{"openai 401", &openai.APIError{HTTPStatusCode: 401}, false},
		{"openai request 503", &openai.RequestError{HTTPStatusCode: 503}, true},
		{"minio 503", minio.ErrorResponse{StatusCode: 503}, true},
		{"minio 404", minio.ErrorResponse{StatusCode: 404}, false},
		{"status error 502", &StatusError{Code: 502}, true},
		{"status error 422", &StatusError{Code: 422, Body: "bad payload"}, false},
		{"net timeout", net.Error(timeoutErr{}), true},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"unknown", errors.New("something odd"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.transient {
				t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.transient)
			}
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	e := &StatusError{Code: 502, Body: "upstream down"}
	if e.Error() != "Bad Gateway: upstream down" {
		t.Fatalf("unexpected message: %q", e.Error())
	}
	e = &StatusError{Code: 404}
	if e.Error() != "Not Found" {
		t.Fatalf("unexpected message: %q", e.Error())
	}
}
