package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trustee/pkg/domain"
	"trustee/pkg/platform/audit"
	"trustee/pkg/platform/audit/store/memory"
)

func TestWorkerPersistsEvents(t *testing.T) {
	store := memory.New()
	inbox := make(chan audit.Event, 4)
	w := NewWorker(store, inbox, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var beneficiary id.Address
	beneficiary[19] = 1
	inbox <- audit.Event{Action: string(audit.EventGrantCreated), Beneficiary: beneficiary}
	inbox <- audit.Event{Action: string(audit.EventTokensUnlocked), Beneficiary: beneficiary}

	require.Eventually(t, func() bool {
		return len(store.All()) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	events, err := store.ListByBeneficiary(context.Background(), beneficiary)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
