package service

import (
	"context"
	"sync"
	"time"

	"github.com/septivank/water-metering-sync/internal/clock"
	"github.com/septivank/water-metering-sync/internal/config"
	"github.com/septivank/water-metering-sync/internal/db"
	"github.com/septivank/water-metering-sync/internal/directory"
	"github.com/septivank/water-metering-sync/internal/mail"
	"github.com/septivank/water-metering-sync/internal/runlock"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Sheets: config.SheetsConfig{
			SpreadsheetID: "sheet-id",
			IndexRange:    "INDEX!A2:K",
			QminRange:     "QMIN!A2:E",
			ClientsRange:  "DONNEES CLIENT!A2:R",
			UTCOffset:     "+02:00",
		},
		Sync: config.SyncConfig{
			IndexLookbackDays:   40,
			QminWindowOlderDays: 42,
			QminWindowNewerDays: 2,
			ChunkSize:           1000,
		},
		RabbitMQ: config.RabbitMQConfig{
			SyncRoutingKey:   "pds.sync.completed",
			AlertsRoutingKey: "pds.alerts.dispatched",
		},
		Alerts: config.AlertsConfig{
			AppURL:     "https://pds.example.com/",
			ProfileURL: "https://pds.example.com/profile",
		},
	}
}

func testClock() *clock.FakeClock {
	return clock.NewFakeClock(testNow)
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Rows(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	args := m.Called(ctx, spreadsheetID, rng)
	rows, _ := args.Get(0).([][]string)
	return rows, args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) KnownConnectionIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockStore) ConsumptionSnapshots(ctx context.Context) ([]db.ConsumptionSnapshot, error) {
	args := m.Called(ctx)
	snapshots, _ := args.Get(0).([]db.ConsumptionSnapshot)
	return snapshots, args.Error(1)
}

func (m *mockStore) AlertRecipients(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	emails, _ := args.Get(0).([]string)
	return emails, args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) Buildings(ctx context.Context) ([]directory.Building, error) {
	args := m.Called(ctx)
	buildings, _ := args.Get(0).([]directory.Building)
	return buildings, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg mail.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// recordingWriter keeps every row it is asked to write
type recordingWriter[T any] struct {
	mu    sync.Mutex
	table string
	rows  []T
	calls int
	err   error
}

func (w *recordingWriter[T]) Table() string { return w.table }

func (w *recordingWriter[T]) WriteChunk(ctx context.Context, rows []T) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return 0, w.err
	}
	w.rows = append(w.rows, rows...)
	return len(rows), nil
}

type fakeLocker struct {
	held     bool
	acquired []string
	released int
}

func (l *fakeLocker) Acquire(ctx context.Context, job string) (func(context.Context) error, error) {
	if l.held {
		return nil, runlock.ErrNotAcquired
	}
	l.acquired = append(l.acquired, job)
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

type stubSyncRunner struct {
	opts SyncOptions
	err  error
}

func (s *stubSyncRunner) Run(ctx context.Context, opts SyncOptions) (*SyncReport, error) {
	s.opts = opts
	return &SyncReport{}, s.err
}

type stubAlertRunner struct {
	requestID string
	err       error
}

func (s *stubAlertRunner) Run(ctx context.Context, requestID string) (*AlertReport, error) {
	s.requestID = requestID
	return &AlertReport{}, s.err
}
