// Package staging parses the staging source where contributors propose new
// company entries.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/trilemmafoundation/canada-tech/internal/company"
	"github.com/trilemmafoundation/canada-tech/internal/tabular"
)

// MalformedInputError reports a structurally invalid tabular file. It is
// fatal: the run stops before anything is written.
type MalformedInputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := "malformed input"
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// Row is one proposed entry. Num is the row's position in the source, the
// header being row 1.
type Row struct {
	Num          int    `csv:"-" json:"row"`
	Name         string `csv:"name" json:"name"`
	URL          string `csv:"url" json:"url"`
	Industry     string `csv:"industry" json:"industry"`
	RemotePolicy string `csv:"remote_policy" json:"remote_policy"`
	City         string `csv:"city" json:"city"`
	Province     string `csv:"province" json:"province"`
	Description  string `csv:"description" json:"description,omitempty"`
	Tags         string `csv:"tags" json:"tags,omitempty"`
	HQAddress    string `csv:"hq_address" json:"hq_address,omitempty"`
}

// Get returns the raw value of a staging column.
func (r Row) Get(col string) string {
	switch col {
	case company.ColName:
		return r.Name
	case company.ColURL:
		return r.URL
	case company.ColIndustry:
		return r.Industry
	case company.ColRemotePolicy:
		return r.RemotePolicy
	case company.ColCity:
		return r.City
	case company.ColProvince:
		return r.Province
	case company.ColDescription:
		return r.Description
	case company.ColTags:
		return r.Tags
	case company.ColHQAddress:
		return r.HQAddress
	default:
		return ""
	}
}

// Values returns the row in company.StagingColumns order.
func (r Row) Values() []string {
	out := make([]string, len(company.StagingColumns))
	for i, col := range company.StagingColumns {
		out[i] = r.Get(col)
	}
	return out
}

// Blank reports whether every field is empty after trimming.
func (r Row) Blank() bool {
	for _, col := range company.StagingColumns {
		if strings.TrimSpace(r.Get(col)) != "" {
			return false
		}
	}
	return true
}

// Comment reports whether the row is a contributor note (name starts with #).
func (r Row) Comment() bool {
	return strings.HasPrefix(strings.TrimSpace(r.Name), "#")
}

// IsSpreadsheet reports whether path names an XLSX staging source.
func IsSpreadsheet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// Options configures how the staging source is read.
type Options struct {
	// Sheet names the worksheet of an XLSX source. Empty means the first.
	Sheet string
}

// Load opens and parses the staging source at path. XLSX files are read
// from opts.Sheet; anything else is parsed as CSV.
func Load(path string, opts Options) ([]Row, error) {
	if IsSpreadsheet(path) {
		rows, err := tabular.ReadXLSX(path, tabular.XLSXOptions{SheetName: opts.Sheet})
		if err != nil {
			return nil, &MalformedInputError{Path: path, Reason: "unreadable spreadsheet", Err: err}
		}
		return parse(path, tabular.NewRowSource(rows))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "staging: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return Parse(path, f)
}

// Parse reads CSV staging rows from r. name is used in error messages only.
func Parse(name string, r io.Reader) ([]Row, error) {
	return parse(name, tabular.NewCSVSource(r))
}

func parse(name string, src tabular.Source) ([]Row, error) {
	header, err := src.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &MalformedInputError{Path: name, Reason: "unreadable header", Err: err}
	}
	header = normalizeHeader(header)
	if err := CheckHeader(header, company.StagingColumns); err != nil {
		return nil, &MalformedInputError{Path: name, Reason: err.Error()}
	}

	dec, err := csvutil.NewDecoder(src, header...)
	if err != nil {
		return nil, &MalformedInputError{Path: name, Reason: "header", Err: err}
	}

	var rows []Row
	num := 1
	for {
		var row Row
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		num++
		if err != nil {
			return nil, &MalformedInputError{Path: name, Reason: fmt.Sprintf("row %d", num), Err: err}
		}
		if row.Blank() || row.Comment() {
			continue
		}
		row.Num = num
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// CheckHeader verifies that header holds exactly the columns in want, in any
// order, each once.
func CheckHeader(header, want []string) error {
	expected := make(map[string]bool, len(want))
	for _, col := range want {
		expected[col] = true
	}

	seen := make(map[string]bool, len(header))
	var unknown, repeated []string
	for _, col := range header {
		switch {
		case seen[col]:
			repeated = append(repeated, col)
		case !expected[col]:
			unknown = append(unknown, col)
		}
		seen[col] = true
	}

	var missing []string
	for _, col := range want {
		if !seen[col] {
			missing = append(missing, col)
		}
	}

	var problems []string
	if len(missing) > 0 {
		sort.Strings(missing)
		problems = append(problems, "missing columns: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		problems = append(problems, "unexpected columns: "+strings.Join(unknown, ", "))
	}
	if len(repeated) > 0 {
		problems = append(problems, "repeated columns: "+strings.Join(repeated, ", "))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Rewrite replaces the staging source with its header, the # comment rows
// it already holds, then rows. Passing no rows clears every entry but keeps
// the comments.
func Rewrite(path string, rows []Row) error {
	if IsSpreadsheet(path) {
		return eris.Errorf("staging: %s is a spreadsheet and cannot be rewritten", path)
	}
	comments, err := commentRows(path)
	if err != nil {
		return err
	}
	values := make([][]string, 0, len(comments)+len(rows))
	values = append(values, comments...)
	for _, row := range rows {
		values = append(values, row.Values())
	}
	if err := tabular.WriteCSVAtomic(path, company.StagingColumns, values); err != nil {
		return eris.Wrap(err, "staging: rewrite")
	}
	return nil
}

// commentRows returns the comment rows of the CSV at path, reordered to
// company.StagingColumns. A missing file has none.
func commentRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "staging: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	records, err := tabular.ReadCSV(f)
	if err != nil {
		return nil, &MalformedInputError{Path: path, Reason: "unreadable rows", Err: err}
	}
	if len(records) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(records[0]))
	for i, col := range normalizeHeader(records[0]) {
		index[col] = i
	}
	nameCol, ok := index[company.ColName]
	if !ok {
		return nil, nil
	}

	var out [][]string
	for _, rec := range records[1:] {
		if !strings.HasPrefix(strings.TrimSpace(rec[nameCol]), "#") {
			continue
		}
		row := make([]string, len(company.StagingColumns))
		for i, col := range company.StagingColumns {
			if j, ok := index[col]; ok {
				row[i] = rec[j]
			}
		}
		out = append(out, row)
	}
	return out, nil
}
