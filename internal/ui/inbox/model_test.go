package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/tests/testutil"
)

var now = time.Now()

func sample() []model.NotificationRecord {
	read := testutil.Record("4", model.ReasonComment, now.Add(-4*time.Hour))
	read.Unread = false
	return []model.NotificationRecord{
		testutil.Record("1", model.ReasonMention, now.Add(-time.Hour)),
		testutil.Record("2", model.ReasonReviewRequested, now.Add(-2*time.Hour)),
		testutil.Record("3", model.ReasonSubscribed, now.Add(-3*time.Hour)),
		read,
	}
}

func ids(records []model.NotificationRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestCategoryFiltering(t *testing.T) {
	m := New(80, 20)
	m.SetRecords(sample())
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(m.Visible()))

	m.NextCategory()
	assert.Equal(t, model.CategoryMentioned, m.Category())
	assert.Equal(t, []string{"1"}, ids(m.Visible()))

	m.NextCategory()
	assert.Equal(t, []string{"2"}, ids(m.Visible()))

	m.NextCategory()
	assert.Equal(t, []string{"4"}, ids(m.Visible()))

	m.NextCategory()
	assert.Equal(t, model.CategoryAll, m.Category())

	m.PrevCategory()
	assert.Equal(t, model.CategoryComments, m.Category())
}

func TestSelectionFollowsThreadAcrossRefresh(t *testing.T) {
	m := New(80, 20)
	records := sample()
	m.SetRecords(records)
	m.list.Select(2)

	got, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "3", got.ID)

	// A newer thread arrives at the top; the cursor stays on "3".
	fresh := append([]model.NotificationRecord{testutil.Record("9", model.ReasonAssign, now)}, records...)
	m.SetRecords(fresh)
	got, ok = m.Selected()
	require.True(t, ok)
	assert.Equal(t, "3", got.ID)
}

func TestSelectionClampsWhenListShrinks(t *testing.T) {
	m := New(80, 20)
	m.SetRecords(sample())
	m.list.Select(3)

	m.SetRecords(sample()[:2])
	got, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", got.ID)
}

func TestCounts(t *testing.T) {
	m := New(80, 20)
	m.SetRecords(sample())

	counts := m.Counts()
	assert.Equal(t, 3, counts[model.CategoryAll])
	assert.Equal(t, 1, counts[model.CategoryMentioned])
	assert.Equal(t, 1, counts[model.CategoryAssignedTask])
	assert.Zero(t, counts[model.CategoryComments])
}

func TestEmptyStates(t *testing.T) {
	m := New(80, 20)
	assert.Contains(t, m.View(), "all caught up")

	m.SetRecords(sample()[2:3])
	m.SetCategory(model.CategoryMentioned)
	assert.Contains(t, m.View(), "Nothing in Mentioned")

	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestRelativeTime(t *testing.T) {
	assert.Equal(t, "", relativeTime(time.Time{}))
	assert.Equal(t, "just now", relativeTime(time.Now()))
	assert.Equal(t, "5m ago", relativeTime(time.Now().Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "2h ago", relativeTime(time.Now().Add(-2*time.Hour-time.Second)))
	assert.Equal(t, "3d ago", relativeTime(time.Now().Add(-72*time.Hour-time.Second)))
	assert.Equal(t, "2w ago", relativeTime(time.Now().Add(-15*24*time.Hour)))
}
