package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, dir string) []Event {
	t.Helper()

	path := filepath.Join(dir, "audit-"+time.Now().UTC().Format("2006-01-02")+".jsonl")
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestFileTrailWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	trail, err := NewFileTrail(dir)
	require.NoError(t, err)

	ctx := context.Background()
	trail.LogEvent(ctx, EventTypeMemoryStore, "alpha", "store", "mem-1",
		map[string]interface{}{"tags": []string{"go"}})
	trail.LogError(ctx, EventTypeMemoryDelete, "alpha", "delete", errors.New("not found"))
	require.NoError(t, trail.Close())

	events := readEvents(t, dir)
	require.Len(t, events, 4) // system_start, store, delete error, system_shutdown

	assert.Equal(t, EventTypeSystemStart, events[0].EventType)

	store := events[1]
	assert.Equal(t, EventTypeMemoryStore, store.EventType)
	assert.Equal(t, "alpha", store.Project)
	assert.Equal(t, "mem-1", store.ResourceID)
	assert.True(t, store.Success)
	assert.NotEmpty(t, store.ID)

	failure := events[2]
	assert.False(t, failure.Success)
	assert.Equal(t, "not found", failure.Error)

	assert.Equal(t, EventTypeSystemShutdown, events[3].EventType)
}

func TestFileTrailAppendsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	trail, err := NewFileTrail(dir)
	require.NoError(t, err)
	require.NoError(t, trail.Close())

	trail, err = NewFileTrail(dir)
	require.NoError(t, err)
	require.NoError(t, trail.Close())

	events := readEvents(t, dir)
	assert.Len(t, events, 4)
}

func TestNopTrail(t *testing.T) {
	var trail Trail = NopTrail{}
	trail.LogEvent(context.Background(), EventTypeMemoryStore, "alpha", "store", "id", nil)
	trail.LogError(context.Background(), EventTypeError, "alpha", "store", errors.New("boom"))
	assert.NoError(t, trail.Close())
}
