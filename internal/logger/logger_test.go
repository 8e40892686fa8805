package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("DEBUG")
	assert.True(t, DebugEnabled())

	SetLevel("trace")
	assert.True(t, DebugEnabled())

	SetLevel("warn")
	assert.False(t, DebugEnabled())
}

func TestTag(t *testing.T) {
	t.Cleanup(func() { SetPrefix("") })

	SetPrefix("")
	assert.Equal(t, "", tag())

	SetPrefix("api")
	assert.Equal(t, "[api] ", tag())
}
