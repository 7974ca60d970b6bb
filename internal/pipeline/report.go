package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/mattn/go-runewidth"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/trilemmafoundation/canada-tech/internal/company"
	"github.com/trilemmafoundation/canada-tech/internal/config"
	"github.com/trilemmafoundation/canada-tech/internal/dedupe"
	"github.com/trilemmafoundation/canada-tech/internal/normalize"
	"github.com/trilemmafoundation/canada-tech/internal/validate"
)

// Status is what happened to one staged row.
type Status string

const (
	StatusMerged   Status = "merged"
	StatusValid    Status = "valid" // passed every check, not (yet) merged
	StatusRejected Status = "rejected"
	StatusSkipped  Status = "skipped" // not processed after an abort
)

// Problem is one reason a row was rejected.
type Problem struct {
	Kind   string `json:"kind" yaml:"kind"`
	Field  string `json:"field" yaml:"field"`
	Value  string `json:"value" yaml:"value"`
	Reason string `json:"reason" yaml:"reason"`
}

// Outcome is the result for one staged row.
type Outcome struct {
	Line     int       `json:"line" yaml:"line"`
	Name     string    `json:"name" yaml:"name"`
	ID       string    `json:"id,omitempty" yaml:"id,omitempty"`
	URL      string    `json:"url,omitempty" yaml:"url,omitempty"`
	Lat      *float64  `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lng      *float64  `json:"lng,omitempty" yaml:"lng,omitempty"`
	Status   Status    `json:"status" yaml:"status"`
	Problems []Problem `json:"problems,omitempty" yaml:"problems,omitempty"`
}

func (o *Outcome) reject(err error) {
	o.Status = StatusRejected
	var v validate.Violations
	if errors.As(err, &v) {
		for _, e := range v {
			o.Problems = append(o.Problems, problemOf(e))
		}
		return
	}
	o.Problems = append(o.Problems, problemOf(err))
}

type fieldError interface {
	Field() string
	Value() string
}

func problemOf(err error) Problem {
	p := Problem{Kind: kindOf(err), Reason: err.Error()}
	var fe fieldError
	if errors.As(err, &fe) {
		p.Field, p.Value = fe.Field(), fe.Value()
	}
	return p
}

func kindOf(err error) string {
	var (
		missing *validate.MissingFieldError
		enum    *validate.InvalidEnumValueError
		badURL  *validate.InvalidURLError
		slug    *validate.EmptySlugError
		geo     *normalize.GeocodingFailureError
		dupID   *dedupe.DuplicateIDError
		dupName *dedupe.DuplicateNameError
	)
	switch {
	case errors.As(err, &missing):
		return "MissingField"
	case errors.As(err, &enum):
		return "InvalidEnumValue"
	case errors.As(err, &badURL):
		return "InvalidURL"
	case errors.As(err, &slug):
		return "EmptySlug"
	case errors.As(err, &geo):
		return "GeocodingFailure"
	case errors.As(err, &dupID):
		return "DuplicateID"
	case errors.As(err, &dupName):
		return "DuplicateName"
	default:
		return "Error"
	}
}

// Report summarizes a pipeline run.
type Report struct {
	RunID          string    `json:"run_id" yaml:"run_id"`
	Check          bool      `json:"check" yaml:"check"`
	Mode           string    `json:"mode" yaml:"mode"`
	Staging        string    `json:"staging" yaml:"staging"`
	Dataset        string    `json:"dataset" yaml:"dataset"`
	Staged         int       `json:"staged" yaml:"staged"`
	Valid          int       `json:"valid" yaml:"valid"`
	Merged         int       `json:"merged" yaml:"merged"`
	Rejected       int       `json:"rejected" yaml:"rejected"`
	Skipped        int       `json:"skipped" yaml:"skipped"`
	Aborted        bool      `json:"aborted" yaml:"aborted"`
	StagingCleared bool      `json:"staging_cleared" yaml:"staging_cleared"`
	Outcomes       []Outcome `json:"outcomes" yaml:"outcomes"`
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusValid:
		r.Valid++
	case StatusMerged:
		r.Merged++
	case StatusRejected:
		r.Rejected++
	case StatusSkipped:
		r.Skipped++
	}
}

// Failed reports whether any staged row was rejected.
func (r *Report) Failed() bool {
	return r.Rejected > 0
}

// Render writes the report to w in the given format.
func (r *Report) Render(w io.Writer, format string) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(r), "report: encode json")
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: close yaml encoder")
	case config.FormatText, "":
		return r.renderText(w)
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

const nameWidth = 32

func (r *Report) renderText(out io.Writer) error {
	if r.Staged == 0 {
		_, err := fmt.Fprintf(out, "No staged entries in %s.\n", r.Staging)
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LINE\tNAME\tID\tSTATUS\tLOCATION")
	_, _ = fmt.Fprintln(w, "----\t----\t--\t------\t--------")
	for _, o := range r.Outcomes {
		loc := ""
		if o.Lat != nil && o.Lng != nil {
			loc = company.FormatCoord(*o.Lat) + ", " + company.FormatCoord(*o.Lng)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			o.Line,
			runewidth.Truncate(o.Name, nameWidth, "..."),
			o.ID,
			o.Status,
			loc,
		)
	}
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "report: flush table")
	}

	for _, o := range r.Outcomes {
		if len(o.Problems) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(out, "\nline %d (%s):\n", o.Line, o.Name)
		for _, p := range o.Problems {
			field := p.Field
			if field == "" {
				field = "-"
			}
			_, _ = fmt.Fprintf(out, "  %-16s %-14s %-24s %s\n", p.Kind, field, strconv.Quote(p.Value), p.Reason)
		}
	}

	_, _ = fmt.Fprintln(out)
	switch {
	case r.Check:
		_, err := fmt.Fprintf(out, "Check: %d valid, %d rejected of %d staged.\n", r.Valid, r.Rejected, r.Staged)
		return err
	case r.Aborted:
		_, err := fmt.Fprintf(out, "Aborted (mode %s): nothing merged, %d rejected, %d skipped of %d staged.\n",
			r.Mode, r.Rejected, r.Skipped, r.Staged)
		return err
	default:
		_, err := fmt.Fprintf(out, "Merged %d of %d staged into %s; %d rejected.\n",
			r.Merged, r.Staged, r.Dataset, r.Rejected)
		return err
	}
}
