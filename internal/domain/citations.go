// Package domain – citation values.
//
// A citation links a span of generated answer text back to the source chunk
// it was grounded on. Citations are keyed by the string form of the marker
// number the generator emitted (e.g. "1" for "[1]") and stored as a JSON
// column on the assistant message.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Citation resolves one in-text marker to its source chunk.
type Citation struct {
	// ChunkID identifies the cited chunk.
	ChunkID string `json:"chunk_id"`
	// FileName is the display name of the source document.
	FileName string `json:"file_name"`
	// Location is a short human-readable position, e.g. "p. 12" or
	// "§ Introduction > Overview".
	Location string `json:"location"`
	// Excerpt is a short prefix of the cited chunk text.
	Excerpt string `json:"excerpt"`
	// OpenURL is an external link that opens the source document, when the
	// storage provider exposes one.
	OpenURL string `json:"open_url,omitempty"`
}

// CitationMap maps citation keys ("1", "2", …) to resolved citations.
// It serializes to a JSON text column so it round-trips on both the
// Postgres and SQLite dialects.
type CitationMap map[string]Citation

// Value implements driver.Valuer. A nil or empty map stores as "{}" so the
// column is never NULL and scans are uniform.
func (m CitationMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for text and blob representations.
func (m *CitationMap) Scan(src any) error {
	if m == nil {
		return errors.New("domain: Scan into nil CitationMap")
	}
	switch v := src.(type) {
	case nil:
		*m = CitationMap{}
		return nil
	case []byte:
		return m.unmarshal(v)
	case string:
		return m.unmarshal([]byte(v))
	default:
		return fmt.Errorf("domain: cannot scan %T into CitationMap", src)
	}
}

func (m *CitationMap) unmarshal(b []byte) error {
	if len(b) == 0 {
		*m = CitationMap{}
		return nil
	}
	out := CitationMap{}
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*m = out
	return nil
}
