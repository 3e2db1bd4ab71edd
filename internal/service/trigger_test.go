package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcessMessage_RoutesSync(t *testing.T) {
	syncRunner := &stubSyncRunner{}
	svc := NewTriggerService(syncRunner, &stubAlertRunner{}, zap.NewNop())

	err := svc.ProcessMessage(context.Background(), []byte(`{"request_id":"r1","job":"sync","lookback_days":3}`))
	require.NoError(t, err)

	assert.Equal(t, "r1", syncRunner.opts.RequestID)
	require.NotNil(t, syncRunner.opts.LookbackDays)
	assert.Equal(t, 3, *syncRunner.opts.LookbackDays)
}

func TestProcessMessage_RoutesAlerts(t *testing.T) {
	alertRunner := &stubAlertRunner{}
	svc := NewTriggerService(&stubSyncRunner{}, alertRunner, zap.NewNop())

	err := svc.ProcessMessage(context.Background(), []byte(`{"request_id":"r2","job":"daily_differential"}`))
	require.NoError(t, err)
	assert.Equal(t, "r2", alertRunner.requestID)
}

func TestProcessMessage_RunInProgressIsAcked(t *testing.T) {
	svc := NewTriggerService(&stubSyncRunner{err: ErrRunInProgress}, &stubAlertRunner{}, zap.NewNop())

	assert.NoError(t, svc.ProcessMessage(context.Background(), []byte(`{"job":"sync"}`)))
}

func TestProcessMessage_Failures(t *testing.T) {
	boom := errors.New("boom")
	svc := NewTriggerService(&stubSyncRunner{}, &stubAlertRunner{err: boom}, zap.NewNop())

	assert.ErrorIs(t, svc.ProcessMessage(context.Background(), []byte(`{"job":"daily_differential"}`)), boom)
	assert.Error(t, svc.ProcessMessage(context.Background(), []byte(`{"job":"reindex"}`)))
	assert.Error(t, svc.ProcessMessage(context.Background(), []byte(`not json`)))
}
