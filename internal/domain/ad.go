package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Well-known keys of Ad.Fields. Extractors may add others.
const (
	FieldPrice    = "price"
	FieldLocation = "location"
	FieldRating   = "rating"
	FieldDistance = "distance"
)

// Ad is one listing entry extracted from a search-result page.
//
// Every attribute other than ID is optional: an ad without a price or a
// location is still a valid ad.
type Ad struct {
	// ID is stable across runs for the same listing (see AdID).
	ID string `json:"-"`

	Title string `json:"title"`
	URL   string `json:"url"`

	// Fields holds the extra displayed attributes (price, location, ...).
	// Only used for exclusion matching and message composition.
	Fields map[string]string `json:"fields,omitempty"`
}

// Field returns the named raw field or "" when absent.
func (a Ad) Field(key string) string {
	if a.Fields == nil {
		return ""
	}
	return a.Fields[key]
}

// AdID derives the identifier of a listing.
// The canonical link wins: query string and fragment are dropped because the
// site appends per-search tracking parameters that change between runs.
// Without a link the title is hashed instead. Returns "" when both are empty.
func AdID(link, title string) string {
	if canon := CanonicalURL(link); canon != "" {
		return hashID(canon)
	}
	if t := strings.TrimSpace(title); t != "" {
		return hashID("title:" + t)
	}
	return ""
}

// CanonicalURL keeps scheme, host and path of raw, lower-casing the host.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Host == "" && u.Path == "" {
		return ""
	}
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// hashID creates a short stable ID using SHA-256 (first 16 hex chars).
func hashID(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])[:16]
}
