package handlers

import (
	"bufio"
	"bytes"
	"testing"
	"time"

	"github.com/localnerve/nodues/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEventsFiltersAndFrames(t *testing.T) {
	events := make(chan notify.Event, 3)
	keepAlive := make(chan time.Time, 1)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	library := notify.NewEvent(notify.DepartmentDecided, "app-1", at)
	library.Departments = []string{"library"}
	accounts := notify.NewEvent(notify.DepartmentDecided, "app-1", at)
	accounts.Departments = []string{"accounts"}
	events <- library
	events <- accounts
	keepAlive <- at
	close(events)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	err := writeEvents(w, events, keepAlive, eventFilter{applicationID: "app-1", department: "library"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, ": connected\n\n")
	assert.Contains(t, out, "id: "+library.ID+"\nevent: department_decided\ndata: {")
	assert.NotContains(t, out, accounts.ID)
}

func TestEventFilter(t *testing.T) {
	e := notify.Event{ApplicationID: "a", Departments: []string{"library", "hostel"}}
	assert.True(t, eventFilter{}.match(e))
	assert.True(t, eventFilter{department: "hostel"}.match(e))
	assert.False(t, eventFilter{applicationID: "b"}.match(e))
	assert.False(t, eventFilter{department: "accounts"}.match(e))
}
