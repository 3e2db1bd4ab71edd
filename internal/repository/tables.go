package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/septivank/water-metering-sync/internal/db"
)

// TableSpec describes how records of one type are inserted
type TableSpec[T any] struct {
	Name     string
	Columns  []string
	Conflict []string
	Values   func(T) []any
}

// TableWriter inserts chunks of records into a table, one transaction per
// chunk. Conflicting rows are skipped, or overwritten when ignoreDuplicates is
// false.
type TableWriter[T any] struct {
	repo             *Repository
	spec             TableSpec[T]
	sql              string
	ignoreDuplicates bool
}

func newTableWriter[T any](repo *Repository, spec TableSpec[T], ignoreDuplicates bool) *TableWriter[T] {
	return &TableWriter[T]{
		repo:             repo,
		spec:             spec,
		sql:              InsertSQL(spec.Name, spec.Columns, spec.Conflict, ignoreDuplicates),
		ignoreDuplicates: ignoreDuplicates,
	}
}

// IgnoreDuplicates reports whether conflicting rows are skipped
func (w *TableWriter[T]) IgnoreDuplicates() bool {
	return w.ignoreDuplicates
}

// Table returns the target table name
func (w *TableWriter[T]) Table() string {
	return w.spec.Name
}

// WriteChunk inserts rows in a single transaction and returns how many rows
// were actually written.
func (w *TableWriter[T]) WriteChunk(ctx context.Context, rows []T) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := w.repo.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("[DATABASE] failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(w.sql, w.spec.Values(row)...)
	}

	results := tx.SendBatch(ctx, batch)
	written := 0
	for i := range rows {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("failed to insert %s row %d: %w", w.spec.Name, i+1, err)
		}
		written += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s batch: %w", w.spec.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("[DATABASE] failed to commit %s chunk: %w", w.spec.Name, err)
	}

	return written, nil
}

// InsertSQL builds the parameterized upsert statement for a table
func InsertSQL(table string, columns, conflict []string, ignoreDuplicates bool) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}

	keys := make([]string, len(conflict))
	isKey := make(map[string]bool, len(conflict))
	for i, c := range conflict {
		keys[i] = pgx.Identifier{c}.Sanitize()
		isKey[c] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(params, ", "),
		strings.Join(keys, ", "),
	)

	var updates []string
	if !ignoreDuplicates {
		for i, c := range columns {
			if !isKey[c] {
				updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoted[i], quoted[i]))
			}
		}
	}
	if len(updates) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		b.WriteString("DO UPDATE SET " + strings.Join(updates, ", "))
	}

	return b.String()
}

// ClientsSpec maps db.Client onto the clients table
var ClientsSpec = TableSpec[db.Client]{
	Name: "clients",
	Columns: []string{
		"pds", "contrat_num_fct", "pds_site_type_fct", "pds_ai_principal_flag_fct",
		"pds_site_adresse_fct", "pds_site_adresse_cplt_fct", "pds_site_cp_fct", "pds_site_ville_fct",
		"contractant_nom_fct", "contractant_adresse_fct", "contractant_cp_fct", "contractant_ville_fct",
		"contractant_pays_fct", "destinataire_nom_fct", "contrat_eso_flag_crm",
		"compteur_diametre_patrimoine", "compteur_acces_patrimoine", "compteur_emplacement_patrimoine",
	},
	Conflict: []string{"pds"},
	Values: func(c db.Client) []any {
		return []any{
			c.PDS, c.ContratNumFct, c.PDSSiteTypeFct, c.PDSAIPrincipalFlagFct,
			c.PDSSiteAdresseFct, c.PDSSiteAdresseCpltFct, c.PDSSiteCPFct, c.PDSSiteVilleFct,
			c.ContractantNomFct, c.ContractantAdresseFct, c.ContractantCPFct, c.ContractantVilleFct,
			c.ContractantPaysFct, c.DestinataireNomFct, c.ContratESOFlagCRM,
			c.CompteurDiametrePatrimoine, c.CompteurAccesPatrimoine, c.CompteurEmplacementPatrimoine,
		}
	},
}

// IndexSpec maps db.IndexReading onto the indexs table
var IndexSpec = TableSpec[db.IndexReading]{
	Name: "indexs",
	Columns: []string{
		"pds", "date_index", "index", "source", "quality", "rank", "last_modified", "day", "daily_differential",
	},
	Conflict: []string{"pds", "date_index"},
	Values: func(r db.IndexReading) []any {
		return []any{
			r.PDS, r.DateIndex, r.Index, r.Source, r.Quality, r.Rank, r.LastModified, dayValue(r.Day), r.DailyDifferential,
		}
	},
}

// QminSpec maps db.QminReading onto the qmins table
var QminSpec = TableSpec[db.QminReading]{
	Name:     "qmins",
	Columns:  []string{"pds", "reference_date", "qmin", "last_modified", "rank"},
	Conflict: []string{"pds", "reference_date"},
	Values: func(r db.QminReading) []any {
		return []any{r.PDS, r.ReferenceDate, r.Qmin, r.LastModified, r.Rank}
	},
}

// ClientsWriter returns the chunk writer for new connections
func (r *Repository) ClientsWriter(ignoreDuplicates bool) *TableWriter[db.Client] {
	return newTableWriter(r, ClientsSpec, ignoreDuplicates)
}

// IndexWriter returns the chunk writer for index readings
func (r *Repository) IndexWriter(ignoreDuplicates bool) *TableWriter[db.IndexReading] {
	return newTableWriter(r, IndexSpec, ignoreDuplicates)
}

// QminWriter returns the chunk writer for qmin readings
func (r *Repository) QminWriter(ignoreDuplicates bool) *TableWriter[db.QminReading] {
	return newTableWriter(r, QminSpec, ignoreDuplicates)
}

// dayValue converts an ISO date into a value pgx encodes as DATE
func dayValue(day string) any {
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return nil
	}
	return t
}
