package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/tests/testutil"
)

func TestPrintRecords(t *testing.T) {
	read := testutil.Record("2", model.ReasonAssign, time.Now())
	read.Unread = false

	var buf bytes.Buffer
	printRecords(&buf, []model.NotificationRecord{
		testutil.Record("1", model.ReasonMention, time.Now()),
		read,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Mentioned")
	assert.Contains(t, lines[1], "*")
	assert.Contains(t, lines[2], "Assigned")
	assert.NotContains(t, lines[2], "*")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(strings.NewReader("ghp_x\n")))
}

func TestRunInitRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, runInit(path, cfg, &buf))
	assert.Contains(t, buf.String(), path)

	assert.Error(t, runInit(path, cfg, &buf))
}
