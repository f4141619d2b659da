package domain

import "sort"

// Snapshot is the persisted set of ads previously seen for a search.
type Snapshot struct {
	SearchName string
	Ads        map[string]Ad // ID -> Ad
}

// NewSnapshot builds a snapshot from an ad list; later duplicates of an ID are ignored.
func NewSnapshot(name string, ads []Ad) Snapshot {
	s := Snapshot{SearchName: name, Ads: make(map[string]Ad, len(ads))}
	for _, ad := range ads {
		if _, ok := s.Ads[ad.ID]; ok {
			continue
		}
		s.Ads[ad.ID] = ad
	}
	return s
}

// IsEmpty reports a first run (no prior state for the search).
func (s Snapshot) IsEmpty() bool { return len(s.Ads) == 0 }

// Has reports whether an ad with that ID was already seen.
func (s Snapshot) Has(id string) bool {
	_, ok := s.Ads[id]
	return ok
}

// IDs returns the snapshot ids, sorted.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.Ads))
	for id := range s.Ads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
