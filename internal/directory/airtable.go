package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/mehanizm/airtable"
	"github.com/septivank/water-metering-sync/internal/config"
)

// AirtableDirectory reads buildings from an Airtable table
type AirtableDirectory struct {
	table  *airtable.Table
	fields config.AirtableConfig
}

// NewAirtableDirectory creates the Airtable backed directory
func NewAirtableDirectory(cfg config.AirtableConfig) (*AirtableDirectory, error) {
	if cfg.AccessToken == "" || cfg.BaseID == "" {
		return nil, fmt.Errorf("AIRTABLE_ACCESS_TOKEN and AIRTABLE_BASE_ID are required for the building directory")
	}

	client := airtable.NewClient(cfg.AccessToken)
	return &AirtableDirectory{
		table:  client.GetTable(cfg.BaseID, cfg.Table),
		fields: cfg,
	}, nil
}

// Buildings pages through every record with a non-empty connection list
func (d *AirtableDirectory) Buildings(ctx context.Context) ([]Building, error) {
	formula := fmt.Sprintf("NOT({%s} = '')", d.fields.PDSField)

	var buildings []Building
	offset := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := d.table.GetRecords().
			WithFilterFormula(formula).
			ReturnFields(d.fields.PDSField, d.fields.NameField, d.fields.StatusField).
			WithOffset(offset).
			Do()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch buildings from airtable: %w", err)
		}

		for _, record := range page.Records {
			buildings = append(buildings, buildingFromFields(record.Fields, d.fields))
		}

		if page.Offset == "" {
			return buildings, nil
		}
		offset = page.Offset
	}
}

func buildingFromFields(fields map[string]any, cfg config.AirtableConfig) Building {
	return Building{
		Name:           stringField(fields[cfg.NameField]),
		PDS:            SplitPDS(stringField(fields[cfg.PDSField])),
		MissionsStatus: listField(fields[cfg.StatusField]),
	}
}

func stringField(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// listField accepts both lookup arrays and single select values
func listField(v any) []string {
	switch s := v.(type) {
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, stringField(item))
		}
		return out
	case []string:
		return s
	case string:
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return []string{s}
	default:
		return nil
	}
}
