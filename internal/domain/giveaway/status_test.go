package giveaway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusCreated, StatusScheduled, true},
		{StatusCreated, StatusPublished, true},
		{StatusScheduled, StatusPublished, true},
		{StatusScheduled, StatusCreated, true},
		{StatusPublished, StatusFinished, true},
		{StatusFinished, StatusFinished, true},
		{StatusCreated, StatusFinished, false},
		{StatusScheduled, StatusFinished, false},
		{StatusPublished, StatusCreated, false},
		{StatusPublished, StatusScheduled, false},
		{StatusFinished, StatusPublished, false},
		{StatusFinished, StatusCreated, false},
		{Status("unknown"), StatusCreated, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusCreated.Valid())
	assert.True(t, StatusFinished.Terminal())
	assert.False(t, StatusPublished.Terminal())
	assert.False(t, Status("active").Valid())
}
