package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// RowSource fetches the cell values of a spreadsheet range, row by row
type RowSource interface {
	Rows(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
}

// GoogleSource reads ranges through the Google Sheets v4 API
type GoogleSource struct {
	service *gsheets.Service
}

// NewGoogleSource authenticates with a service account JSON document
func NewGoogleSource(ctx context.Context, credentialsJSON string) (*GoogleSource, error) {
	if credentialsJSON == "" {
		return nil, fmt.Errorf("GOOGLE_CREDENTIALS is required for the sheets source")
	}

	service, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(credentialsJSON)),
		option.WithScopes(gsheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &GoogleSource{service: service}, nil
}

// Rows returns the formatted values of the range. An empty range yields no
// rows.
func (s *GoogleSource) Rows(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	resp, err := s.service.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", rng, err)
	}
	return toStrings(resp.Values), nil
}

func toStrings(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, cell := range row {
			switch v := cell.(type) {
			case nil:
			case string:
				cells[j] = v
			default:
				cells[j] = fmt.Sprint(v)
			}
		}
		rows[i] = cells
	}
	return rows
}
