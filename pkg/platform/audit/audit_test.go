package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCategory(t *testing.T) {
	tests := []struct {
		event AuditEvent
		want  EventCategory
	}{
		{EventGrantCreated, CategoryCompliance},
		{EventGrantRevoked, CategoryCompliance},
		{EventSurplusWithdrawn, CategorySecurity},
		{EventAssetRescued, CategorySecurity},
		{EventTokensUnlocked, CategoryOperations},
		{EventUnlockRejected, CategoryOperations},
		{AuditEvent("unknown_action"), CategoryOperations},
	}
	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Category())
		})
	}
}

func TestPublisherEmit(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps timestamp and category", func(t *testing.T) {
		p := NewPublisher(4, nil)
		require.NoError(t, p.Emit(ctx, Event{Action: string(EventGrantCreated)}))

		event := <-p.Events()
		assert.False(t, event.Timestamp.IsZero())
		assert.Equal(t, CategoryCompliance, event.Category)
	})

	t.Run("preserves caller-set fields", func(t *testing.T) {
		p := NewPublisher(4, nil)
		stamped := time.Unix(42, 0)
		require.NoError(t, p.Emit(ctx, Event{
			Action:    string(EventTokensUnlocked),
			Timestamp: stamped,
			Category:  CategorySecurity,
		}))

		event := <-p.Events()
		assert.Equal(t, stamped, event.Timestamp)
		assert.Equal(t, CategorySecurity, event.Category)
	})

	t.Run("full buffer drops instead of blocking", func(t *testing.T) {
		p := NewPublisher(1, nil)
		require.NoError(t, p.Emit(ctx, Event{Action: "a"}))
		// Buffer is full now; this must return promptly.
		require.NoError(t, p.Emit(ctx, Event{Action: "b"}))

		event := <-p.Events()
		assert.Equal(t, "a", event.Action)
		select {
		case e := <-p.Events():
			t.Fatalf("expected dropped event, got %q", e.Action)
		default:
		}
	})
}
