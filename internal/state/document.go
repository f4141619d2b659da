package state

import (
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
)

// record is the stored form of an ad; its id is the map key.
type record struct {
	Title  string            `json:"title"`
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Document maps search name -> ad id -> ad.
type Document map[string]map[string]record

func decodeDocument(data []byte) (Document, error) {
	doc := Document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid state document: %w", err)
	}
	if doc == nil { // literal "null"
		doc = Document{}
	}
	return doc, nil
}

// encode renders the document as indented JSON; map keys are sorted so the
// output is stable and diff-friendly.
func (d Document) encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

func (d Document) snapshot(name string) domain.Snapshot {
	entries := d[name]
	snap := domain.Snapshot{SearchName: name, Ads: make(map[string]domain.Ad, len(entries))}
	for id, r := range entries {
		snap.Ads[id] = domain.Ad{ID: id, Title: r.Title, URL: r.URL, Fields: cloneFields(r.Fields)}
	}
	return snap
}

func (d Document) put(name string, ads []domain.Ad) {
	entries := make(map[string]record, len(ads))
	for _, ad := range ads {
		if _, ok := entries[ad.ID]; ok {
			continue
		}
		entries[ad.ID] = record{Title: ad.Title, URL: ad.URL, Fields: cloneFields(ad.Fields)}
	}
	d[name] = entries
}

func (d Document) clone() Document {
	out := make(Document, len(d))
	for name, entries := range d {
		cp := make(map[string]record, len(entries))
		for id, r := range entries {
			r.Fields = cloneFields(r.Fields)
			cp[id] = r
		}
		out[name] = cp
	}
	return out
}

func cloneFields(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
