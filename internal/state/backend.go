// Package state persists the snapshots of all searches as one keyed document.
package state

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Backend.Read when no document was ever written.
var ErrNotExist = errors.New("state document does not exist")

// Backend stores the raw state document. Write must replace the whole
// document atomically: a reader sees either the old or the new bytes.
type Backend interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}
