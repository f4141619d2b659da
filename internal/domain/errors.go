package domain

import (
	"errors"
	"fmt"
)

// NetworkError reports a page that could not be fetched (transport failure,
// timeout or non-success status).
type NetworkError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports a page whose content is not a recognisable listing page.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.URL, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ConfigError reports invalid configuration, detected before any scraping.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config %s: %v", e.Field, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// PersistenceError reports a state document that cannot be read or written.
type PersistenceError struct {
	Op      string // "read" | "decode" | "encode" | "write"
	Backend string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("state %s (%s): %v", e.Op, e.Backend, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotificationDispatchError reports one failed send to one recipient.
type NotificationDispatchError struct {
	Sender    string
	Recipient string
	Err       error
}

func (e *NotificationDispatchError) Error() string {
	to := e.Recipient
	if to == "" {
		to = "all devices"
	}
	return fmt.Sprintf("notify %s (%s): %v", e.Sender, to, e.Err)
}

func (e *NotificationDispatchError) Unwrap() error { return e.Err }

// IsFetchFailure reports errors that make a page unusable (network or parse).
func IsFetchFailure(err error) bool {
	var ne *NetworkError
	var pe *ParseError
	return errors.As(err, &ne) || errors.As(err, &pe)
}
