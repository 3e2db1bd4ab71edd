package anomaly

import (
	"testing"

	"github.com/septivank/water-metering-sync/internal/config"
	"github.com/septivank/water-metering-sync/internal/db"
	"github.com/septivank/water-metering-sync/internal/directory"
)

func f(v float64) *float64 { return &v }

func qminSnapshot(pds string, last, daily, weekly *float64) db.ConsumptionSnapshot {
	return db.ConsumptionSnapshot{PDS: pds, LastQmin: last, QminDailyDifferential: daily, QminWeeklyDifferential: weekly}
}

func TestQminWarnings_RankByStatusThenDelta(t *testing.T) {
	detector := NewDetector(config.DefaultAlertRules())

	snapshots := []db.ConsumptionSnapshot{
		qminSnapshot("PDS-CLOS", f(200), f(130), nil),
		qminSnapshot("PDS-EN-COURS", f(120), f(60), f(100)),
	}
	buildings := []directory.Building{
		{Name: "Clos", PDS: []string{"PDS-CLOS"}, MissionsStatus: []string{"Clos"}},
		{Name: "Actif", PDS: []string{"PDS-EN-COURS"}, MissionsStatus: []string{"En cours"}},
	}

	warnings := detector.QminWarnings(Join(snapshots, buildings))

	if len(warnings) != 2 {
		t.Fatalf("Expected 2 warnings, got %d", len(warnings))
	}
	if warnings[0].Snapshot.PDS != "PDS-EN-COURS" {
		t.Errorf("Expected En cours building first, got %s", warnings[0].Snapshot.PDS)
	}
	if *warnings[0].Daily != 60 || *warnings[0].Weekly != 20 {
		t.Errorf("Unexpected deltas: daily %v weekly %v", *warnings[0].Daily, *warnings[0].Weekly)
	}
	if warnings[1].Priority != 4 {
		t.Errorf("Expected Clos priority 4, got %d", warnings[1].Priority)
	}
}

func TestQminWarnings_ExcludedStatus(t *testing.T) {
	detector := NewDetector(config.DefaultAlertRules())

	entries := Join(
		[]db.ConsumptionSnapshot{qminSnapshot("PDS1", f(500), f(10), nil)},
		[]directory.Building{{Name: "A", PDS: []string{"PDS1"}, MissionsStatus: []string{"Refus / Abandon / Suspendu"}}},
	)

	if w := detector.QminWarnings(entries); len(w) != 0 {
		t.Errorf("Expected excluded building to raise no warning, got %d", len(w))
	}
}

func TestQminWarnings_ThresholdAndMissingValues(t *testing.T) {
	detector := NewDetector(config.DefaultAlertRules())

	entries := Join([]db.ConsumptionSnapshot{
		qminSnapshot("AT-THRESHOLD", f(100), f(50), nil),
		qminSnapshot("NO-DAILY", f(100), nil, nil),
		qminSnapshot("NO-LAST", nil, f(0), nil),
		qminSnapshot("FROM-ZERO", f(51), f(0), nil),
	}, nil)

	warnings := detector.QminWarnings(entries)
	if len(warnings) != 1 || warnings[0].Snapshot.PDS != "FROM-ZERO" {
		t.Fatalf("Expected only FROM-ZERO to warn, got %+v", warnings)
	}
	if warnings[0].Building != nil || warnings[0].Priority != 999 {
		t.Errorf("Expected unmatched connection with unknown priority, got %+v", warnings[0])
	}
}

func TestQminWarnings_TieBreaks(t *testing.T) {
	detector := NewDetector(config.DefaultAlertRules())

	entries := Join([]db.ConsumptionSnapshot{
		qminSnapshot("A", f(160), f(100), nil),
		qminSnapshot("B", f(160), f(100), f(150)),
		qminSnapshot("C", f(200), f(100), f(150)),
		qminSnapshot("D", f(160), f(100), f(100)),
	}, nil)

	warnings := detector.QminWarnings(entries)
	got := make([]string, len(warnings))
	for i, w := range warnings {
		got[i] = w.Snapshot.PDS
	}

	want := []string{"C", "D", "B", "A"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, got)
		}
	}
}

func TestIndexWarnings_IgnoresStatus(t *testing.T) {
	detector := NewDetector(config.DefaultAlertRules())

	entries := Join([]db.ConsumptionSnapshot{
		{PDS: "P1", LastIndex: f(1100), IndexDailyDifferential: f(1000)},
		{PDS: "P2", LastIndex: f(1300), IndexDailyDifferential: f(1000)},
		{PDS: "P3", LastIndex: f(1040), IndexDailyDifferential: f(1000)},
	}, []directory.Building{
		{Name: "Abandon", PDS: []string{"P1"}, MissionsStatus: []string{"Refus / Abandon / Suspendu"}},
	})

	warnings := detector.IndexWarnings(entries)
	if len(warnings) != 2 {
		t.Fatalf("Expected 2 index warnings, got %d", len(warnings))
	}
	if warnings[0].Snapshot.PDS != "P2" || warnings[1].Snapshot.PDS != "P1" {
		t.Errorf("Expected P2 then P1, got %s then %s", warnings[0].Snapshot.PDS, warnings[1].Snapshot.PDS)
	}
}

func TestPriority_CustomRules(t *testing.T) {
	rules := config.DefaultAlertRules()
	rules.StatusPriorities = []config.StatusPriority{{Status: "Urgent", Priority: 0}}
	rules.UnknownPriority = 50
	detector := NewDetector(rules)

	if detector.Priority("Urgent") != 0 {
		t.Error("Expected Urgent priority 0")
	}
	if detector.Priority("En cours") != 50 || detector.Priority("") != 50 {
		t.Error("Expected statuses outside the table to use the unknown priority")
	}
}
