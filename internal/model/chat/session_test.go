package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionSelectLastWriteWins(t *testing.T) {
	s := NewSession("s1", time.Now())

	_, ok := s.Selected()
	assert.False(t, ok)

	s.Select("Happy")
	s.Select("Sad")

	got, ok := s.Selected()
	assert.True(t, ok)
	assert.Equal(t, "Sad", got)
}

func TestSessionAppendKeepsOrder(t *testing.T) {
	s := NewSession("s1", time.Now())

	assert.Equal(t, 1, s.Append(Turn{User: "a"}))
	assert.Equal(t, 2, s.Append(Turn{User: "b"}))

	history := s.History()
	assert.Equal(t, "a", history[0].User)
	assert.Equal(t, "b", history[1].User)

	history[0].User = "mutated"
	assert.Equal(t, "a", s.History()[0].User)
	assert.Equal(t, 2, s.Len())
}
