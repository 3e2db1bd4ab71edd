package reconcile

import (
	"strings"
	"time"

	"github.com/septivank/water-metering-sync/internal/db"
	"github.com/septivank/water-metering-sync/internal/validator"
)

// Sources holds the raw tab contents and the stored connection ids fetched
// for one run.
type Sources struct {
	Clients  [][]string
	Index    [][]string
	Qmin     [][]string
	KnownIDs []string
}

// Options controls how the sources are filtered
type Options struct {
	Location    *time.Location
	IndexWindow Window
	QminWindow  Window
}

// Stats counts what happened to the fetched rows
type Stats struct {
	ClientRows     int `json:"client_rows"`
	IndexRows      int `json:"index_rows"`
	QminRows       int `json:"qmin_rows"`
	NewConnections int `json:"new_connections"`
	Rejected       int `json:"rejected"`
	Orphans        int `json:"orphans"`
	OutsideWindow  int `json:"outside_window"`
}

// Plan is the set of records a run will write, in write order
type Plan struct {
	Clients  []db.Client
	Index    []db.IndexReading
	Qmin     []db.QminReading
	Rejected []*validator.RowError
	Stats    Stats
}

// Build reconciles the sheet rows against the stored connection ids.
// Connections missing from the store become new clients; their readings are
// kept regardless of the windows. Readings of known connections must fall in
// their window. Readings of connections that are neither are dropped.
func Build(src Sources, opts Options) Plan {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var plan Plan

	clientRows, rejected := ClientsSchema.Normalize(src.Clients)
	plan.Rejected = append(plan.Rejected, rejected...)
	plan.Stats.ClientRows = len(src.Clients)

	sheetIDs := make([]string, 0, len(clientRows))
	byID := make(map[string]validator.Row, len(clientRows))
	for _, row := range clientRows {
		id := row.RawCell(ColPDS)
		if strings.TrimSpace(id) == "" {
			plan.Rejected = append(plan.Rejected, rowError(ClientsSchema, row, "missing pds"))
			continue
		}
		sheetIDs = append(sheetIDs, id)
		if _, seen := byID[id]; !seen {
			byID[id] = row
		}
	}

	class := Classify(sheetIDs, src.KnownIDs)
	for _, id := range class.New {
		plan.Clients = append(plan.Clients, MapClient(byID[id]))
	}
	plan.Stats.NewConnections = len(class.New)

	indexRows, rejected := IndexSchema.Normalize(src.Index)
	plan.Rejected = append(plan.Rejected, rejected...)
	plan.Stats.IndexRows = len(src.Index)
	for _, row := range indexRows {
		keep, ok := admit(&plan, class, IndexSchema, row)
		if !ok {
			continue
		}
		reading, err := MapIndex(row, loc)
		if err != nil {
			plan.Rejected = append(plan.Rejected, rowError(IndexSchema, row, err.Error()))
			continue
		}
		if !keep && !opts.IndexWindow.Contains(reading.DateIndex) {
			plan.Stats.OutsideWindow++
			continue
		}
		plan.Index = append(plan.Index, reading)
	}

	qminRows, rejected := QminSchema.Normalize(src.Qmin)
	plan.Rejected = append(plan.Rejected, rejected...)
	plan.Stats.QminRows = len(src.Qmin)
	for _, row := range qminRows {
		keep, ok := admit(&plan, class, QminSchema, row)
		if !ok {
			continue
		}
		reading, err := MapQmin(row, loc)
		if err != nil {
			plan.Rejected = append(plan.Rejected, rowError(QminSchema, row, err.Error()))
			continue
		}
		if !keep && !opts.QminWindow.Contains(reading.ReferenceDate) {
			plan.Stats.OutsideWindow++
			continue
		}
		plan.Qmin = append(plan.Qmin, reading)
	}

	plan.Stats.Rejected = len(plan.Rejected)
	return plan
}

// admit checks the reading's connection. It returns keep=true when the
// connection is new and the window must be skipped, and ok=false when the row
// is dropped.
func admit(plan *Plan, class Classification, schema validator.Schema, row validator.Row) (keep bool, ok bool) {
	id := row.RawCell(ColPDS)
	switch {
	case strings.TrimSpace(id) == "":
		plan.Rejected = append(plan.Rejected, rowError(schema, row, "missing pds"))
		return false, false
	case class.IsNew(id):
		return true, true
	case class.IsKnown(id):
		return false, true
	default:
		plan.Stats.Orphans++
		return false, false
	}
}

func rowError(schema validator.Schema, row validator.Row, reason string) *validator.RowError {
	return &validator.RowError{Sheet: schema.Name, Number: row.Number, Reason: reason}
}
