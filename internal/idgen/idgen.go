// Package idgen generates opaque identifiers for queue messages and reports.
package idgen

import (
	"sync"

	"github.com/google/uuid"
)

// NewFunc returns a new identifier
var NewFunc = func() string { return uuid.New().String() }

// New returns NewFunc()
func New() string { return NewFunc() }

// Sequence makes New return ids in order, then fall back to the previous
// generator; the returned func restores it.
func Sequence(ids ...string) (restore func()) {
	previous := NewFunc
	var mu sync.Mutex
	next := 0
	NewFunc = func() string {
		mu.Lock()
		defer mu.Unlock()
		if next < len(ids) {
			next++
			return ids[next-1]
		}
		return previous()
	}
	return func() { NewFunc = previous }
}
