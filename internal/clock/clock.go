// Package clock indirects wall clock reads so tests can pin time.
package clock

import "time"

// NowFunc returns current time
var NowFunc = time.Now

// Now returns NowFunc()
func Now() time.Time { return NowFunc() }

// Since returns time elapsed from t according to NowFunc
func Since(t time.Time) time.Duration { return NowFunc().Sub(t) }

// Freeze pins Now to t until the returned restore func is called
func Freeze(t time.Time) (restore func()) {
	previous := NowFunc
	NowFunc = func() time.Time { return t }
	return func() { NowFunc = previous }
}
