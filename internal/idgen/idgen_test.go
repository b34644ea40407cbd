package idgen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSequence(t *testing.T) {
	restore := Sequence("a", "b")
	assert.Equal(t, "a", New())
	assert.Equal(t, "b", New())
	_, err := uuid.Parse(New())
	assert.NoError(t, err)
	restore()
	_, err = uuid.Parse(New())
	assert.NoError(t, err)
}
