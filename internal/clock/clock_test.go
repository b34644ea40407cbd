package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFreeze(t *testing.T) {
	pinned := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	restore := Freeze(pinned)
	assert.Equal(t, pinned, Now())
	assert.Equal(t, time.Hour, Since(pinned.Add(-time.Hour)))
	restore()
	assert.NotEqual(t, pinned, Now())
}
