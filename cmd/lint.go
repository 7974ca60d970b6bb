package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/trilemmafoundation/canada-tech/internal/config"
	"github.com/trilemmafoundation/canada-tech/internal/dataset"
	"github.com/trilemmafoundation/canada-tech/internal/validate"
)

var errLintFailed = eris.New("canonical dataset has problems")

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check every canonical entry against the dataset invariants",
	Long: `Re-validates the canonical dataset: required fields, closed value sets,
normalized URLs, slug-shaped unique ids and coordinates inside Canada.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ds, err := dataset.OpenReadOnly(cfg.Data.CompaniesPath)
		if err != nil {
			return err
		}
		defer ds.Close() //nolint:errcheck

		findings := lintDataset(ds.Entries())
		zap.L().Info("lint finished",
			zap.String("dataset", ds.Path()),
			zap.Int("entries", len(ds.Entries())),
			zap.Int("problems", len(findings)),
		)

		if err := writeLintFindings(cmd.OutOrStdout(), cfg.Report.Format, len(ds.Entries()), findings); err != nil {
			return err
		}
		if len(findings) > 0 {
			return errLintFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)
}

type lintFinding struct {
	Line   int    `json:"line" yaml:"line"`
	ID     string `json:"id" yaml:"id"`
	Field  string `json:"field" yaml:"field"`
	Value  string `json:"value" yaml:"value"`
	Reason string `json:"reason" yaml:"reason"`
}

// lintDataset validates every entry and reports repeated ids.
func lintDataset(entries []dataset.Entry) []lintFinding {
	var findings []lintFinding
	firstLine := make(map[string]int, len(entries))

	for _, e := range entries {
		rec, err := validate.ValidateCanonical(e.Values)
		var v validate.Violations
		if errors.As(err, &v) {
			for _, problem := range v {
				findings = append(findings, lintFinding{
					Line:   e.Line,
					ID:     rec.ID,
					Field:  problem.Field(),
					Value:  problem.Value(),
					Reason: problem.Error(),
				})
			}
		}

		if rec.ID == "" {
			continue
		}
		if first, ok := firstLine[rec.ID]; ok {
			findings = append(findings, lintFinding{
				Line:   e.Line,
				ID:     rec.ID,
				Field:  "id",
				Value:  rec.ID,
				Reason: "duplicate id (first seen on line " + strconv.Itoa(first) + ")",
			})
			continue
		}
		firstLine[rec.ID] = e.Line
	}
	return findings
}

func writeLintFindings(w io.Writer, format string, entries int, findings []lintFinding) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(findings), "lint: encode json")
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(findings); err != nil {
			return eris.Wrap(err, "lint: encode yaml")
		}
		return eris.Wrap(enc.Close(), "lint: close yaml encoder")
	}

	for _, f := range findings {
		_, _ = fmt.Fprintf(w, "line %d %s: %s\n", f.Line, f.ID, f.Reason)
	}
	if len(findings) == 0 {
		_, err := fmt.Fprintf(w, "%d entries, no problems.\n", entries)
		return err
	}
	_, err := fmt.Fprintf(w, "%d entries, %d problems.\n", entries, len(findings))
	return err
}
