package timeparser

import (
	"fmt"
	"strings"
	"time"
)

const isoDateLayout = "2006-01-02"

// ParseSheetDateTime parses a spreadsheet timestamp in the given location.
// Seconds are optional.
func ParseSheetDateTime(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	formats := []string{
		"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
		"02/01/2006 15:04",    // DD/MM/YYYY HH:mm
		"2/1/2006 15:04:05",
		"2/1/2006 15:04",
	}

	value = strings.TrimSpace(value)
	var lastErr error
	for _, format := range formats {
		t, err := time.ParseInLocation(format, value, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", value, lastErr)
}

// ParseSheetDate converts a DD/MM/YYYY cell into an ISO YYYY-MM-DD string
func ParseSheetDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, format := range []string{"02/01/2006", "2/1/2006"} {
		t, err := time.Parse(format, value)
		if err == nil {
			return t.Format(isoDateLayout), nil
		}
	}
	return "", fmt.Errorf("failed to parse date '%s'", value)
}

// DaysAgoUTCMidnight returns 00:00 UTC on the UTC calendar date of now minus n days
func DaysAgoUTCMidnight(now time.Time, days int) time.Time {
	shifted := now.AddDate(0, 0, -days).UTC()
	y, m, d := shifted.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseOffset resolves a "+02:00" style offset or an IANA zone name
func ParseOffset(spec string) (*time.Location, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "UTC") || spec == "Z" {
		return time.UTC, nil
	}

	if spec[0] == '+' || spec[0] == '-' {
		t, err := time.Parse("-07:00", spec)
		if err != nil {
			return nil, fmt.Errorf("invalid utc offset '%s': %w", spec, err)
		}
		_, offset := t.Zone()
		return time.FixedZone(spec, offset), nil
	}

	loc, err := time.LoadLocation(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone '%s': %w", spec, err)
	}
	return loc, nil
}
