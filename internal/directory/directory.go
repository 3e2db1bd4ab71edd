package directory

import (
	"context"
	"strings"
)

// Building is a managed building and the connections it owns
type Building struct {
	Name           string   `json:"name"`
	PDS            []string `json:"pds"`
	MissionsStatus []string `json:"missions_status"`
}

// CurrentStatus is the first mission status, or "" when there is none
func (b Building) CurrentStatus() string {
	if len(b.MissionsStatus) == 0 {
		return ""
	}
	return b.MissionsStatus[0]
}

// Directory lists the buildings known to the building registry
type Directory interface {
	Buildings(ctx context.Context) ([]Building, error)
}

// SplitPDS splits a comma separated connection list, dropping blanks
func SplitPDS(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FilterByPDS keeps the buildings owning at least one of the given
// connections. An empty list keeps everything.
func FilterByPDS(buildings []Building, pds []string) []Building {
	if len(pds) == 0 {
		return buildings
	}
	wanted := make(map[string]struct{}, len(pds))
	for _, p := range pds {
		wanted[p] = struct{}{}
	}

	var out []Building
	for _, b := range buildings {
		for _, p := range b.PDS {
			if _, ok := wanted[p]; ok {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// IndexByPDS maps every connection to its building. When several buildings
// claim a connection the first one wins.
func IndexByPDS(buildings []Building) map[string]Building {
	out := make(map[string]Building)
	for _, b := range buildings {
		for _, p := range b.PDS {
			if _, ok := out[p]; !ok {
				out[p] = b
			}
		}
	}
	return out
}
