package refstore

import (
	"encoding/json"
	"fmt"
	"io"

	"visearch/internal/domain"
)

// ReferenceSet is the immutable, ordered set of loaded references.
type ReferenceSet struct {
	records    []domain.ReferenceRecord
	index      map[string]int
	dim        int
	duplicates []string
}

func (s *ReferenceSet) Records() []domain.ReferenceRecord { return s.records }

func (s *ReferenceSet) Len() int { return len(s.records) }

func (s *ReferenceSet) Dimension() int { return s.dim }

// Lookup returns the first record with the given code.
func (s *ReferenceSet) Lookup(code string) (domain.ReferenceRecord, bool) {
	i, ok := s.index[code]
	if !ok {
		return domain.ReferenceRecord{}, false
	}
	return s.records[i], true
}

// Codes returns the distinct codes in store order.
func (s *ReferenceSet) Codes() []string {
	codes := make([]string, 0, len(s.index))
	for i, rec := range s.records {
		if s.index[rec.Code] == i {
			codes = append(codes, rec.Code)
		}
	}
	return codes
}

func (s *ReferenceSet) Stats() domain.ReferenceStats {
	return domain.ReferenceStats{
		Records:    len(s.records),
		Dimension:  s.dim,
		Duplicates: append([]string(nil), s.duplicates...),
	}
}

// NewReferenceSet validates records and builds a set.
// expectedDim of 0 accepts whatever dimension the first record has.
func NewReferenceSet(records []domain.ReferenceRecord, expectedDim int) (*ReferenceSet, error) {
	set := &ReferenceSet{
		index: make(map[string]int, len(records)),
		dim:   expectedDim,
	}
	for _, rec := range records {
		if err := set.add(rec); err != nil {
			return nil, err
		}
	}
	if len(set.records) == 0 {
		return nil, fmt.Errorf("reference set is empty")
	}
	return set, nil
}

func (s *ReferenceSet) add(rec domain.ReferenceRecord) error {
	n := len(s.records)
	if rec.Code == "" {
		return fmt.Errorf("record %d: empty code", n)
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("record %d (%s): empty embedding", n, rec.Code)
	}
	if s.dim == 0 {
		s.dim = len(rec.Embedding)
	}
	if len(rec.Embedding) != s.dim {
		return fmt.Errorf("record %d (%s): %w: got %d, want %d", n, rec.Code, domain.ErrDimensionMismatch, len(rec.Embedding), s.dim)
	}

	if _, dup := s.index[rec.Code]; dup {
		s.duplicates = append(s.duplicates, rec.Code)
	} else {
		s.index[rec.Code] = n
	}
	s.records = append(s.records, rec)
	return nil
}

// Parse decodes a JSON array of references as a stream.
func Parse(r io.Reader, expectedDim int) (*ReferenceSet, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read references: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("references must be a JSON array")
	}

	set := &ReferenceSet{
		index: make(map[string]int),
		dim:   expectedDim,
	}
	for dec.More() {
		var rec domain.ReferenceRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", len(set.records), err)
		}
		if err := set.add(rec); err != nil {
			return nil, err
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read references: %w", err)
	}
	if len(set.records) == 0 {
		return nil, fmt.Errorf("reference set is empty")
	}
	return set, nil
}
