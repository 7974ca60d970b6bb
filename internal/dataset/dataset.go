// Package dataset owns the canonical companies file for the length of a run.
//
// A Dataset is acquired with Open, which takes an advisory lock next to the
// file. Records are appended in memory and only reach disk on Commit, which
// replaces the file atomically. Close releases the lock and discards anything
// not committed.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trilemmafoundation/canada-tech/internal/company"
	"github.com/trilemmafoundation/canada-tech/internal/staging"
	"github.com/trilemmafoundation/canada-tech/internal/tabular"
)

// ErrLocked is returned by Open when another run holds the dataset.
var ErrLocked = errors.New("dataset is locked by another run")

// Entry is one existing row, keyed by column name. Line is the row's line in
// the file, the header being line 1.
type Entry struct {
	Line   int
	Values map[string]string
}

// Dataset is an exclusively owned handle on the canonical companies file.
type Dataset struct {
	path     string
	lockPath string
	readOnly bool
	closed   bool

	header  []string
	rows    [][]string
	entries []Entry
	pending []company.Record
}

// Open reads the dataset at path and locks it for writing. A missing file is
// an empty dataset with the canonical header.
func Open(path string) (*Dataset, error) {
	lockPath := path + ".lock"
	if err := acquireLock(lockPath); err != nil {
		return nil, err
	}
	d := &Dataset{path: path, lockPath: lockPath}
	if err := d.load(); err != nil {
		_ = os.Remove(lockPath)
		return nil, err
	}
	return d, nil
}

// OpenReadOnly reads the dataset without taking the lock. Append and Commit
// fail on the returned handle.
func OpenReadOnly(path string) (*Dataset, error) {
	d := &Dataset{path: path, readOnly: true}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

func acquireLock(lockPath string) error {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return eris.Wrapf(ErrLocked, "dataset: %s exists (remove it if no run is in progress)", lockPath)
	}
	if err != nil {
		return eris.Wrapf(err, "dataset: create lock %s", lockPath)
	}
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	return eris.Wrap(f.Close(), "dataset: close lock file")
}

func (d *Dataset) load() error {
	f, err := os.Open(d.path)
	if errors.Is(err, os.ErrNotExist) {
		d.header = append([]string(nil), company.CanonicalColumns...)
		zap.L().Debug("dataset: starting new file", zap.String("path", d.path))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "dataset: open %s", d.path)
	}
	defer f.Close() //nolint:errcheck

	rows, err := tabular.ReadCSV(f)
	if err != nil {
		return &staging.MalformedInputError{Path: d.path, Reason: "unreadable csv", Err: err}
	}
	if len(rows) == 0 {
		d.header = append([]string(nil), company.CanonicalColumns...)
		return nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	if err := checkCanonicalHeader(header); err != nil {
		return &staging.MalformedInputError{Path: d.path, Reason: err.Error()}
	}

	d.header = header
	d.rows = rows[1:]
	d.entries = make([]Entry, len(d.rows))
	for i, row := range d.rows {
		values := make(map[string]string, len(header))
		for j, col := range header {
			values[col] = row[j]
		}
		d.entries[i] = Entry{Line: i + 2, Values: values}
	}
	return nil
}

// checkCanonicalHeader accepts any column order and extra columns, but every
// canonical column must appear exactly once.
func checkCanonicalHeader(header []string) error {
	seen := make(map[string]bool, len(header))
	var repeated []string
	for _, col := range header {
		if seen[col] {
			repeated = append(repeated, col)
		}
		seen[col] = true
	}
	var missing []string
	for _, col := range company.CanonicalColumns {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing columns: "+strings.Join(missing, ", "))
	}
	if len(repeated) > 0 {
		problems = append(problems, "repeated columns: "+strings.Join(repeated, ", "))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Path is the file backing the dataset.
func (d *Dataset) Path() string { return d.path }

// Header is the column order of the file.
func (d *Dataset) Header() []string { return d.header }

// Entries returns the rows read from disk.
func (d *Dataset) Entries() []Entry { return d.entries }

// Records returns the existing rows as records, followed by any pending
// appends. Existing rows are read leniently: values are not validated.
func (d *Dataset) Records() []company.Record {
	out := make([]company.Record, 0, len(d.entries)+len(d.pending))
	for _, e := range d.entries {
		out = append(out, recordOf(e.Values))
	}
	return append(out, d.pending...)
}

func recordOf(v map[string]string) company.Record {
	r := company.Record{
		ID:           v[company.ColID],
		Name:         v[company.ColName],
		URL:          v[company.ColURL],
		Industry:     company.Industry(v[company.ColIndustry]),
		RemotePolicy: company.RemotePolicy(v[company.ColRemotePolicy]),
		City:         v[company.ColCity],
		Province:     company.Province(v[company.ColProvince]),
		Description:  v[company.ColDescription],
		Tags:         v[company.ColTags],
		HQAddress:    v[company.ColHQAddress],
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(v[company.ColLat]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(v[company.ColLng]), 64)
	if errLat == nil && errLng == nil {
		r.Lat, r.Lng, r.Located = lat, lng, true
	}
	return r
}

// Append stages r to be written after the existing rows. Only complete
// records are accepted: an id and resolved coordinates are required.
func (d *Dataset) Append(r company.Record) error {
	if err := d.writable(); err != nil {
		return err
	}
	if r.ID == "" {
		return eris.Errorf("dataset: append %q: record has no id", r.Name)
	}
	if !r.Located {
		return eris.Errorf("dataset: append %s: record has no coordinates", r.ID)
	}
	d.pending = append(d.pending, r)
	return nil
}

// Pending is the number of appended records not yet committed.
func (d *Dataset) Pending() int { return len(d.pending) }

// Commit writes existing rows and pending records to disk. Existing rows are
// written back unchanged, in their original order. With nothing pending the
// file is not touched.
func (d *Dataset) Commit() error {
	if err := d.writable(); err != nil {
		return err
	}
	if len(d.pending) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(d.rows)+len(d.pending))
	rows = append(rows, d.rows...)
	for _, r := range d.pending {
		rows = append(rows, r.Row(d.header))
	}
	if err := tabular.WriteCSVAtomic(d.path, d.header, rows); err != nil {
		return eris.Wrapf(err, "dataset: commit %s", d.path)
	}

	d.rows = rows
	for i, r := range d.pending {
		values := make(map[string]string, len(d.header))
		for j, col := range d.header {
			values[col] = rows[len(rows)-len(d.pending)+i][j]
		}
		d.entries = append(d.entries, Entry{Line: len(d.entries) + 2, Values: values})
		zap.L().Debug("dataset: committed record", zap.String("id", r.ID))
	}
	d.pending = nil
	return nil
}

// Close releases the lock. Uncommitted appends are dropped.
func (d *Dataset) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if len(d.pending) > 0 {
		zap.L().Warn("dataset: closing with uncommitted records", zap.Int("pending", len(d.pending)))
		d.pending = nil
	}
	if d.readOnly {
		return nil
	}
	if err := os.Remove(d.lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "dataset: release lock %s", d.lockPath)
	}
	return nil
}

func (d *Dataset) writable() error {
	switch {
	case d.closed:
		return eris.New("dataset: handle is closed")
	case d.readOnly:
		return eris.New("dataset: handle is read-only")
	}
	return nil
}
