package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/octobar/internal/model"
)

func TestResultCarriesPollBookkeeping(t *testing.T) {
	polled := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	base := model.DefaultSettings()
	base.LastPollAt = &polled
	base.CacheToken = "W/\"abc\""

	m := New(80, 24)
	m.StartEdit(base)

	m.fb.interval = 30
	m.fb.showBadge = false
	m.fb.iconStyle = model.IconStyleFilled

	got := m.Result()
	assert.Equal(t, 30, got.PollIntervalMinutes)
	assert.False(t, got.ShowBadge)
	assert.Equal(t, model.IconStyleFilled, got.IconStyle)
	assert.True(t, got.NotificationsEnabled)
	assert.Equal(t, &polled, got.LastPollAt)
	assert.Equal(t, "W/\"abc\"", got.CacheToken)
}

func TestResultClampsInterval(t *testing.T) {
	m := New(80, 24)
	m.StartEdit(model.DefaultSettings())
	m.fb.interval = 2
	assert.Equal(t, model.MinPollIntervalMinutes, m.Result().PollIntervalMinutes)
}

func TestIntervalOptionsIncludeCurrent(t *testing.T) {
	assert.Len(t, intervalOptions(15), len(intervalChoices))
	assert.Len(t, intervalOptions(20), len(intervalChoices)+1)
	assert.Equal(t, "Every hour", intervalLabel(60))
	assert.Equal(t, "Every 5 minutes", intervalLabel(5))
}

func TestViewEmptyBeforeStart(t *testing.T) {
	m := New(80, 24)
	assert.Empty(t, m.View())

	m.StartEdit(model.DefaultSettings())
	assert.Contains(t, m.View(), "Preferences")
}
