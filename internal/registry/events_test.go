package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesStatusTransitions(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(Service{ID: "job-1", Status: StatusPending}))

	sub, cancel := reg.Subscribe()
	defer cancel()

	require.NoError(t, reg.UpdateStatus("job-1", StatusConfiguring))

	select {
	case ev := <-sub:
		assert.Equal(t, "job-1", ev.ServiceID)
		assert.Equal(t, StatusConfiguring, ev.Status)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status event")
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	reg := New()
	sub, cancel := reg.Subscribe()
	cancel()

	_, ok := <-sub
	assert.False(t, ok, "cancel should close the subscriber channel")
}

func TestUpdateStatusNoopDoesNotPublish(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(Service{ID: "job-1", Status: StatusPending}))

	sub, cancel := reg.Subscribe()
	defer cancel()

	require.NoError(t, reg.UpdateStatus("job-1", StatusPending))

	select {
	case ev := <-sub:
		t.Fatalf("expected no event on a same-status no-op, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
