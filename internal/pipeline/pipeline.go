// Package pipeline runs staged company entries through validation,
// normalization, duplicate checking and the merge into the canonical dataset.
package pipeline

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trilemmafoundation/canada-tech/internal/company"
	"github.com/trilemmafoundation/canada-tech/internal/config"
	"github.com/trilemmafoundation/canada-tech/internal/dataset"
	"github.com/trilemmafoundation/canada-tech/internal/dedupe"
	"github.com/trilemmafoundation/canada-tech/internal/normalize"
	"github.com/trilemmafoundation/canada-tech/internal/staging"
	"github.com/trilemmafoundation/canada-tech/internal/validate"
)

// Locator resolves a record's coordinates. *normalize.Locator satisfies it.
type Locator interface {
	Locate(ctx context.Context, r company.Record) (lat, lng float64, err error)
}

// Pipeline processes the staging source against the canonical dataset.
type Pipeline struct {
	cfg     *config.Config
	locator Locator
	runID   string
}

// New creates a Pipeline. locator may be nil when only Check is used.
func New(cfg *config.Config, locator Locator) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		locator: locator,
		runID:   uuid.NewString(),
	}
}

// RunID identifies this pipeline's invocation in logs and reports.
func (p *Pipeline) RunID() string { return p.runID }

// Check validates and duplicate-checks every staged row without geocoding or
// writing anything.
func (p *Pipeline) Check(ctx context.Context) (*Report, error) {
	return p.process(ctx, true)
}

// Run processes the staging source and merges accepted records into the
// canonical dataset according to the configured merge mode.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if p.locator == nil {
		return nil, eris.New("pipeline: no geocoder configured")
	}
	return p.process(ctx, false)
}

type accepted struct {
	row    staging.Row
	record company.Record
}

func (p *Pipeline) process(ctx context.Context, check bool) (*Report, error) {
	log := zap.L().With(zap.String("run_id", p.runID))
	mode := p.cfg.Merge.Mode
	report := &Report{
		RunID:   p.runID,
		Check:   check,
		Mode:    mode,
		Staging: p.cfg.Data.StagingPath,
		Dataset: p.cfg.Data.CompaniesPath,
	}

	rows, err := staging.Load(p.cfg.Data.StagingPath, staging.Options{Sheet: p.cfg.Data.StagingSheet})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(err, "pipeline: staging source %s not found", p.cfg.Data.StagingPath)
		}
		return nil, err
	}
	report.Staged = len(rows)
	if len(rows) == 0 {
		log.Info("pipeline: nothing staged", zap.String("staging", p.cfg.Data.StagingPath))
		return report, nil
	}

	var ds *dataset.Dataset
	if check {
		ds, err = dataset.OpenReadOnly(p.cfg.Data.CompaniesPath)
	} else {
		ds, err = dataset.Open(p.cfg.Data.CompaniesPath)
	}
	if err != nil {
		return nil, err
	}
	defer ds.Close() //nolint:errcheck

	existing := ds.Records()
	idx := dedupe.NewIndex(existing, dedupe.Options{FuzzyNames: p.cfg.Dedupe.FuzzyNames})
	log.Info("pipeline: starting",
		zap.Bool("check", check),
		zap.String("mode", mode),
		zap.Int("staged", len(rows)),
		zap.Int("existing", len(existing)),
		zap.Int("known_ids", idx.Len()),
	)

	abortOnFailure := !check && mode == config.ModeAbort
	var (
		good     []accepted
		rejected []staging.Row
	)
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: cancelled")
		}

		out, rec, err := p.processRow(ctx, idx, row, check)
		if err != nil {
			return nil, err
		}
		report.add(out)

		rowLog := log.With(zap.Int("line", row.Num), zap.String("name", row.Name))
		if out.Status == StatusRejected {
			rowLog.Warn("pipeline: record rejected", zap.Int("problems", len(out.Problems)))
			rejected = append(rejected, row)
			if abortOnFailure {
				for _, rest := range rows[i+1:] {
					report.add(Outcome{Line: rest.Num, Name: rest.Name, Status: StatusSkipped})
				}
				report.Aborted = true
				break
			}
			continue
		}
		rowLog.Debug("pipeline: record accepted", zap.String("id", rec.ID))
		good = append(good, accepted{row: row, record: rec})
	}

	if check {
		log.Info("pipeline: check finished", zap.Int("valid", report.Valid), zap.Int("rejected", report.Rejected))
		return report, nil
	}
	if report.Aborted {
		log.Warn("pipeline: aborted, nothing merged", zap.Int("rejected", report.Rejected))
		return report, nil
	}

	if len(good) > 0 {
		for _, a := range good {
			if err := ds.Append(a.record); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: cancelled before commit")
		}
		if err := ds.Commit(); err != nil {
			return nil, err
		}
		for i := range report.Outcomes {
			if report.Outcomes[i].Status == StatusValid {
				report.Outcomes[i].Status = StatusMerged
			}
		}
		report.Merged = len(good)
		report.Valid = 0
	}

	if err := p.updateStaging(rejected, len(good), report); err != nil {
		return nil, err
	}

	log.Info("pipeline: finished",
		zap.Int("merged", report.Merged),
		zap.Int("rejected", report.Rejected),
		zap.Bool("staging_cleared", report.StagingCleared),
	)
	return report, nil
}

// processRow validates, normalizes, dedupes and (outside check mode)
// geocodes one staged row. Only cancellation is returned as an error; every
// other failure becomes a rejected outcome.
func (p *Pipeline) processRow(ctx context.Context, idx *dedupe.Index, row staging.Row, check bool) (Outcome, company.Record, error) {
	out := Outcome{Line: row.Num, Name: row.Name}

	rec, err := validate.Validate(row)
	if err != nil {
		out.reject(err)
		return out, company.Record{}, nil
	}
	rec.ID = normalize.ID(rec.Name, rec.City)
	out.ID = rec.ID
	out.URL = rec.URL

	if err := idx.Check(rec); err != nil {
		out.reject(err)
		return out, company.Record{}, nil
	}

	if !check {
		lat, lng, err := p.locator.Locate(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return out, company.Record{}, eris.Wrap(ctx.Err(), "pipeline: cancelled while geocoding")
			}
			out.reject(err)
			return out, company.Record{}, nil
		}
		rec.Lat, rec.Lng, rec.Located = lat, lng, true
		out.Lat, out.Lng = &rec.Lat, &rec.Lng
	}

	idx.Add(rec)
	out.Status = StatusValid
	return out, rec, nil
}

// updateStaging clears the staging source after a clean run, or keeps only the
// rejected rows after a partial merge. A run that merged nothing leaves the
// staging source as it was.
func (p *Pipeline) updateStaging(rejected []staging.Row, merged int, report *Report) error {
	path := p.cfg.Data.StagingPath
	log := zap.L().With(zap.String("run_id", p.runID), zap.String("staging", path))

	if len(rejected) > 0 && merged == 0 {
		return nil
	}
	if staging.IsSpreadsheet(path) {
		log.Warn("pipeline: spreadsheet staging source not rewritten; remove merged rows by hand")
		return nil
	}
	if err := staging.Rewrite(path, rejected); err != nil {
		return err
	}
	report.StagingCleared = len(rejected) == 0
	if !report.StagingCleared {
		log.Info("pipeline: staging source now holds only rejected rows", zap.Int("rows", len(rejected)))
	}
	return nil
}
