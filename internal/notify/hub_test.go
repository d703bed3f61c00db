package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToEverySubscriber(t *testing.T) {
	hub := NewHub(4, zerolog.Nop())
	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	defer cancelB()

	e := NewEvent(DepartmentDecided, "app-1", time.Now())
	require.NoError(t, hub.Publish(context.Background(), e))

	assert.Equal(t, e.ID, (<-a).ID)
	assert.Equal(t, e.ID, (<-b).ID)
	assert.Equal(t, 2, hub.Subscribers())

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers())
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewHub(1, zerolog.Nop())
	ch, cancel := hub.Subscribe()
	defer cancel()

	first := NewEvent(ApplicationCreated, "app-1", time.Now())
	second := NewEvent(DepartmentDecided, "app-1", time.Now())

	done := make(chan struct{})
	go func() {
		_ = hub.Publish(context.Background(), first)
		_ = hub.Publish(context.Background(), second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Equal(t, first.ID, (<-ch).ID)
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %s", e.ID)
	default:
	}
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

type recording struct{ got []Event }

func (r *recording) Publish(_ context.Context, e Event) error {
	r.got = append(r.got, e)
	return nil
}

func TestMultiPublishesToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	rec := &recording{}
	m := Multi{failing{boom}, rec, Nop{}}

	err := m.Publish(context.Background(), NewEvent(Reapplied, "app-2", time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.Len(t, rec.got, 1)
	assert.Equal(t, Reapplied, rec.got[0].Type)
}

func TestNATSSubject(t *testing.T) {
	p := NewNATSPublisher(nil, "nodues.events", zerolog.Nop())
	assert.Equal(t, "nodues.events.department_decided", p.Subject(DepartmentDecided))
}
