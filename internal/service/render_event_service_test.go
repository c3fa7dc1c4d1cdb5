package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/models"
)

func TestRenderEventServiceDeliversLocally(t *testing.T) {
	svc := NewRenderEventService(nil, "", nil, testLogger())
	updates, cleanup := svc.Subscribe(5)
	other, cleanupOther := svc.Subscribe(6)
	defer cleanupOther()

	require.NoError(t, svc.Publish(context.Background(), dto.RenderStatusEvent{AssignmentID: 5, Status: models.RenderStatusQueued}))

	select {
	case event := <-updates:
		require.Equal(t, models.RenderStatusQueued, event.Status)
		require.False(t, event.OccurredAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}
	require.Empty(t, drainEvents(other))

	cleanup()
	cleanup()
	_, open := <-updates
	require.False(t, open)
}

func TestRenderEventServiceIgnoresOwnRemoteEcho(t *testing.T) {
	svc := NewRenderEventService(nil, "", nil, testLogger()).(*renderEventService)
	updates, cleanup := svc.Subscribe(5)
	defer cleanup()

	own, err := json.Marshal(renderEventEnvelope{Source: svc.nodeID, Event: dto.RenderStatusEvent{AssignmentID: 5, Status: models.RenderStatusReady}})
	require.NoError(t, err)
	svc.handleEvent(own)
	svc.handleEvent([]byte("{not json"))
	require.Empty(t, drainEvents(updates))

	remote, err := json.Marshal(renderEventEnvelope{Source: "other-node", Event: dto.RenderStatusEvent{AssignmentID: 5, Status: models.RenderStatusReady}})
	require.NoError(t, err)
	svc.handleEvent(remote)
	events := drainEvents(updates)
	require.Len(t, events, 1)
	require.Equal(t, models.RenderStatusReady, events[0].Status)
}

func TestRenderEventServiceFansOutThroughRedis(t *testing.T) {
	client := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewRenderEventService(client, "talentscope:test", nil, testLogger())
	api := NewRenderEventService(client, "talentscope:test", nil, testLogger())
	api.Start(ctx)

	updates, cleanup := api.Subscribe(9)
	defer cleanup()

	var received dto.RenderStatusEvent
	require.Eventually(t, func() bool {
		require.NoError(t, worker.Publish(ctx, dto.RenderStatusEvent{AssignmentID: 9, Status: models.RenderStatusGenerating}))
		select {
		case received = <-updates:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, models.RenderStatusGenerating, received.Status)
}
