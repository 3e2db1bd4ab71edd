package reconcile

// Classification splits spreadsheet connection ids into those already stored
// and those seen for the first time.
type Classification struct {
	New   []string
	known map[string]struct{}
	fresh map[string]struct{}
}

// Classify compares sheet ids against stored ids. New keeps the order of first
// appearance in the sheet and holds each id once. Ids compare byte for byte.
func Classify(sheetIDs, storeIDs []string) Classification {
	c := Classification{
		known: make(map[string]struct{}, len(storeIDs)),
		fresh: make(map[string]struct{}),
	}
	for _, id := range storeIDs {
		c.known[id] = struct{}{}
	}
	for _, id := range sheetIDs {
		if id == "" {
			continue
		}
		if _, ok := c.known[id]; ok {
			continue
		}
		if _, ok := c.fresh[id]; ok {
			continue
		}
		c.fresh[id] = struct{}{}
		c.New = append(c.New, id)
	}
	return c
}

// IsKnown reports whether the id already exists in the store
func (c Classification) IsKnown(id string) bool {
	_, ok := c.known[id]
	return ok
}

// IsNew reports whether the id is created by this run
func (c Classification) IsNew(id string) bool {
	_, ok := c.fresh[id]
	return ok
}
