// Package services defines the business logic for folders, conversations and
// chat answers. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrFolderNotFound indicates that the requested folder does not exist
	// or is not accessible to the current user.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrFolderIndexing is returned when an operation conflicts with an
	// indexing run that is currently in flight for the folder.
	ErrFolderIndexing = errors.New("folder is being indexed")

	// ErrConversationNotFound indicates that the requested conversation does
	// not exist or is not accessible to the current user.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyPrompt is returned when a chat request contains an empty
	// prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a chat prompt exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("prompt too long")
)
