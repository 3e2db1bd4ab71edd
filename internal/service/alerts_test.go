package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/septivank/water-metering-sync/internal/anomaly"
	"github.com/septivank/water-metering-sync/internal/config"
	"github.com/septivank/water-metering-sync/internal/db"
	"github.com/septivank/water-metering-sync/internal/directory"
	"github.com/septivank/water-metering-sync/internal/mail"
	"github.com/septivank/water-metering-sync/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ptr(v float64) *float64 { return &v }

type alertFixture struct {
	store     *mockStore
	directory *mockDirectory
	sender    *mockSender
	publisher *mockPublisher
	locker    *fakeLocker
	service   *AlertService
}

func newAlertFixture(t *testing.T) *alertFixture {
	t.Helper()

	f := &alertFixture{
		store:     &mockStore{},
		directory: &mockDirectory{},
		sender:    &mockSender{},
		publisher: &mockPublisher{},
		locker:    &fakeLocker{},
	}

	svc, err := NewAlertService(AlertDeps{
		Store:     f.store,
		Directory: f.directory,
		Detector:  anomaly.NewDetector(config.DefaultAlertRules()),
		Notifier:  notify.NewDispatcher(f.sender, "Différentiels quotidiens", 2, zap.NewNop()),
		Locker:    f.locker,
		Publisher: f.publisher,
		Clock:     testClock(),
		Logger:    zap.NewNop(),
	}, testConfig())
	require.NoError(t, err)
	f.service = svc
	return f
}

func TestAlertRun_RanksAndSends(t *testing.T) {
	f := newAlertFixture(t)
	f.store.On("ConsumptionSnapshots", mock.Anything).Return([]db.ConsumptionSnapshot{
		{PDS: "PDS-CLOS", LastQmin: ptr(200), QminDailyDifferential: ptr(130)},
		{PDS: "PDS-EN-COURS", LastQmin: ptr(120), QminDailyDifferential: ptr(60), QminWeeklyDifferential: ptr(100)},
		{PDS: "PDS-CALME", LastQmin: ptr(10), QminDailyDifferential: ptr(9)},
	}, nil)
	f.directory.On("Buildings", mock.Anything).Return([]directory.Building{
		{Name: "Résidence Clos", PDS: []string{"PDS-CLOS"}, MissionsStatus: []string{"Clos"}},
		{Name: "Résidence Active", PDS: []string{"PDS-EN-COURS"}, MissionsStatus: []string{"En cours"}},
	}, nil)
	f.store.On("AlertRecipients", mock.Anything).Return([]string{"a@example.com", "b@example.com"}, nil)

	f.sender.On("Send", mock.Anything, mock.MatchedBy(func(msg mail.Message) bool {
		return msg.Subject == "Différentiels quotidiens"
	})).Return(nil).Twice()
	f.publisher.On("Publish", mock.Anything, "pds.alerts.dispatched", mock.AnythingOfType("*service.AlertReport")).Return(nil)

	report, err := f.service.Run(context.Background(), "req-42")
	require.NoError(t, err)

	assert.Equal(t, 3, report.Connections)
	assert.Equal(t, 2, report.QminWarnings)
	assert.Equal(t, 0, report.IndexWarnings)
	assert.Equal(t, notify.DispatchReport{Recipients: 2, Sent: 2}, report.Dispatch)
	assert.Equal(t, "req-42", report.RequestID)
	assert.Equal(t, []string{"daily_differential"}, f.locker.acquired)

	var bodies []string
	for _, call := range f.sender.Calls {
		bodies = append(bodies, call.Arguments.Get(1).(mail.Message).HTML)
	}
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1], "every recipient gets the same report")
	active := strings.Index(bodies[0], "Résidence Active")
	closed := strings.Index(bodies[0], "Résidence Clos")
	require.True(t, active >= 0 && closed >= 0)
	assert.Less(t, active, closed, "En cours buildings are listed before Clos ones")
	assert.Contains(t, bodies[0], "15/10/2026")

	f.sender.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestAlertRun_NoRecipientsSendsNothing(t *testing.T) {
	f := newAlertFixture(t)
	f.store.On("ConsumptionSnapshots", mock.Anything).Return([]db.ConsumptionSnapshot{
		{PDS: "PDS1", LastQmin: ptr(500), QminDailyDifferential: ptr(10)},
	}, nil)
	f.directory.On("Buildings", mock.Anything).Return([]directory.Building{}, nil)
	f.store.On("AlertRecipients", mock.Anything).Return([]string{}, nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	report, err := f.service.Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 1, report.QminWarnings)
	assert.Equal(t, notify.DispatchReport{}, report.Dispatch)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestAlertRun_DirectoryFailureAborts(t *testing.T) {
	f := newAlertFixture(t)
	f.store.On("ConsumptionSnapshots", mock.Anything).Return([]db.ConsumptionSnapshot{}, nil).Maybe()
	f.store.On("AlertRecipients", mock.Anything).Return([]string{"a@example.com"}, nil).Maybe()
	f.directory.On("Buildings", mock.Anything).Return(nil, errors.New("401 unauthorized"))

	_, err := f.service.Run(context.Background(), "")

	var fetchErr *SourceFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, SourceBuildings, fetchErr.Source)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.locker.released)
}

func TestAlertRun_LockHeld(t *testing.T) {
	f := newAlertFixture(t)
	f.locker.held = true

	_, err := f.service.Run(context.Background(), "")

	assert.ErrorIs(t, err, ErrRunInProgress)
	f.store.AssertNotCalled(t, "ConsumptionSnapshots", mock.Anything)
}

func TestAlertRun_SendsWithinRunDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.Alerts.TimeoutSeconds = 60

	store, dir, sender := &mockStore{}, &mockDirectory{}, &mockSender{}
	svc, err := NewAlertService(AlertDeps{
		Store:     store,
		Directory: dir,
		Detector:  anomaly.NewDetector(config.DefaultAlertRules()),
		Notifier:  notify.NewDispatcher(sender, "Différentiels quotidiens", 1, zap.NewNop()),
		Locker:    &fakeLocker{},
		Clock:     testClock(),
		Logger:    zap.NewNop(),
	}, cfg)
	require.NoError(t, err)

	store.On("ConsumptionSnapshots", mock.Anything).Return([]db.ConsumptionSnapshot{}, nil)
	dir.On("Buildings", mock.Anything).Return([]directory.Building{}, nil)
	store.On("AlertRecipients", mock.Anything).Return([]string{"a@example.com"}, nil)

	var deadline time.Time
	var hasDeadline bool
	sender.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		deadline, hasDeadline = args.Get(0).(context.Context).Deadline()
	}).Return(nil).Once()

	_, err = svc.Run(context.Background(), "")
	require.NoError(t, err)

	require.True(t, hasDeadline, "sends must be bounded by the alerts timeout")
	assert.WithinDuration(t, time.Now().Add(60*time.Second), deadline, 5*time.Second)
}
