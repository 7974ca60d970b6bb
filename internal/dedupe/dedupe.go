// Package dedupe rejects staged records that already exist in the canonical
// dataset or earlier in the same batch.
package dedupe

import (
	"strings"

	"github.com/trilemmafoundation/canada-tech/internal/company"
)

// DuplicateIDError is a record whose id is already taken.
type DuplicateIDError struct {
	ID string
	// InBatch is set when the earlier record came from the same staging run.
	InBatch bool
}

func (e *DuplicateIDError) Error() string {
	if e.InBatch {
		return "duplicate id " + e.ID + " (earlier in this batch)"
	}
	return "duplicate id " + e.ID
}

func (e *DuplicateIDError) Field() string { return company.ColID }
func (e *DuplicateIDError) Value() string { return e.ID }

// DuplicateNameError is a record whose name, city and province match an
// existing record under a different id.
type DuplicateNameError struct {
	Name       string
	ExistingID string
	InBatch    bool
}

func (e *DuplicateNameError) Error() string {
	msg := "duplicate company " + e.Name + " (matches " + e.ExistingID
	if e.InBatch {
		msg += ", earlier in this batch"
	}
	return msg + ")"
}

func (e *DuplicateNameError) Field() string { return company.ColName }
func (e *DuplicateNameError) Value() string { return e.Name }

// Options configures an Index.
type Options struct {
	// FuzzyNames also matches on normalized name, city and province.
	FuzzyNames bool
}

type origin struct {
	id      string
	inBatch bool
}

// Index holds the ids (and optionally name keys) of every known record.
type Index struct {
	opts  Options
	ids   map[string]bool
	names map[string]origin
}

// NewIndex seeds an index with the canonical dataset's records.
func NewIndex(existing []company.Record, opts Options) *Index {
	idx := &Index{
		opts:  opts,
		ids:   make(map[string]bool, len(existing)),
		names: make(map[string]origin, len(existing)),
	}
	for _, r := range existing {
		idx.add(r, false)
	}
	return idx
}

// Len is the number of distinct ids in the index.
func (idx *Index) Len() int { return len(idx.ids) }

// Check returns a *DuplicateIDError or *DuplicateNameError if r is already
// known. Ids are compared exactly.
func (idx *Index) Check(r company.Record) error {
	if inBatch, ok := idx.ids[r.ID]; ok {
		return &DuplicateIDError{ID: r.ID, InBatch: inBatch}
	}
	if idx.opts.FuzzyNames {
		if o, ok := idx.names[nameKey(r)]; ok {
			return &DuplicateNameError{Name: r.Name, ExistingID: o.id, InBatch: o.inBatch}
		}
	}
	return nil
}

// Add registers a record accepted in the current batch.
func (idx *Index) Add(r company.Record) {
	idx.add(r, true)
}

func (idx *Index) add(r company.Record, inBatch bool) {
	if _, ok := idx.ids[r.ID]; !ok {
		idx.ids[r.ID] = inBatch
	}
	key := nameKey(r)
	if _, ok := idx.names[key]; !ok {
		idx.names[key] = origin{id: r.ID, inBatch: inBatch}
	}
}

var corporateSuffixes = []string{
	" inc.", " inc", " ltd.", " ltd", " corp.", " corp", " llc", " co.", " co",
}

// NormalizeName lower-cases a company name and strips common corporate
// suffixes, so "Acme Corp." and "acme" compare equal.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range corporateSuffixes {
		if strings.HasSuffix(n, s) {
			n = strings.TrimSpace(strings.TrimSuffix(n, s))
		}
	}
	return n
}

func nameKey(r company.Record) string {
	return NormalizeName(r.Name) + "\x00" +
		strings.ToLower(strings.TrimSpace(r.City)) + "\x00" +
		strings.ToUpper(strings.TrimSpace(string(r.Province)))
}
