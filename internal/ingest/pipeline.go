// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest drives the token reader and record decoder, streaming
// records from source files into the collection index. One bad record never
// aborts a run; one bad source never aborts its siblings.
package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pmcollect/internal/collection"
	"github.com/pdiddy/pmcollect/internal/decode"
	"github.com/pdiddy/pmcollect/internal/xmlstream"
	"github.com/pdiddy/pmcollect/pkg/types"
)

// Options configures a Pipeline.
type Options struct {
	// Truncate selects the truncated-final-record policy. Empty means
	// types.TruncateWarn.
	Truncate types.TruncatePolicy

	// MaxWarnings caps warnings retained per report; overflow is still
	// logged and counted in the log, just not accumulated. Zero means
	// unlimited.
	MaxWarnings int

	// Logger receives per-record failure and warning logs. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Pipeline ingests source streams into one collection. A Pipeline is
// stateless between calls; the same instance may ingest any number of
// sources sequentially, and independent pipelines may target the same
// collection concurrently.
type Pipeline struct {
	col  *collection.Collection
	opts Options
	log  *slog.Logger
}

// New returns a pipeline writing into col.
func New(col *collection.Collection, opts Options) *Pipeline {
	if opts.Truncate == "" {
		opts.Truncate = types.TruncateWarn
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{col: col, opts: opts, log: logger}
}

// Ingest streams records from r into the collection. It always returns a
// report; the error is non-nil only for a stream-level failure (malformed
// container, unreadable encoding, I/O error), in which case the report
// still carries the progress made before the failure. Cancellation is
// honored between records, never mid-decode.
func (p *Pipeline) Ingest(ctx context.Context, source string, r io.Reader) (types.IngestReport, error) {
	report := types.IngestReport{Source: source}

	warn := func(w types.Warning) {
		p.log.Warn("decode warning",
			slog.String("source", source),
			slog.String("code", w.Code),
			slog.String("record", w.RecordID),
			slog.Int64("offset", w.Offset),
			slog.String("detail", w.Message))
		if p.opts.MaxWarnings == 0 || len(report.Warnings) < p.opts.MaxWarnings {
			report.Warnings = append(report.Warnings, w)
		}
	}

	reader := xmlstream.NewReader(r, xmlstream.Options{Warn: warn})
	dec := decode.New(warn)

	for {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		ev, err := reader.Next()
		if err != nil {
			return p.finishStream(&report, warn, err)
		}
		if ev.Kind != xmlstream.KindStart || ev.Depth != 1 {
			continue
		}

		if ev.Name != decode.RecordElement {
			// Container children we do not index (e.g. DeleteCitation).
			if err := skipSubtree(reader, ev.Depth); err != nil {
				return p.finishStream(&report, warn, err)
			}
			continue
		}

		rec, err := dec.Decode(ev, reader)
		if err != nil {
			var recErr *decode.RecordError
			if errors.As(err, &recErr) {
				report.Failed++
				p.log.Warn("record skipped",
					slog.String("source", source),
					slog.String("record", recErr.RecordID),
					slog.Int64("offset", recErr.Offset),
					slog.String("reason", recErr.Reason))
				continue
			}
			return p.finishStream(&report, warn, err)
		}

		outcome, err := p.col.InsertOrUpdate(rec)
		if err != nil {
			report.Failed++
			continue
		}
		switch outcome {
		case collection.Inserted:
			report.Ingested++
		case collection.Updated:
			report.Updated++
		case collection.Unchanged:
			report.Unchanged++
		}
	}
}

// finishStream maps the terminal reader error onto the report. Clean EOF
// ends the run; truncation follows the configured policy; everything else
// is a per-source stream failure surfaced with partial progress.
func (p *Pipeline) finishStream(report *types.IngestReport, warn func(types.Warning), err error) (types.IngestReport, error) {
	if err == io.EOF {
		return *report, nil
	}

	var streamErr *xmlstream.StreamError
	if errors.As(err, &streamErr) && streamErr.Truncated && p.opts.Truncate == types.TruncateWarn {
		warn(types.Warning{
			Code:    types.WarnTruncated,
			Message: "source truncated; partial final record discarded",
			Offset:  streamErr.Offset,
		})
		return *report, nil
	}

	p.log.Error("stream aborted",
		slog.String("source", report.Source),
		slog.Int("records", report.Records()),
		slog.String("error", err.Error()))
	return *report, err
}

// skipSubtree consumes events until the element opened at depth closes.
func skipSubtree(r *xmlstream.Reader, depth int) error {
	for {
		ev, err := r.Next()
		if err != nil {
			return err
		}
		if ev.Kind == xmlstream.KindEnd && ev.Depth == depth {
			return nil
		}
	}
}

// Source is one ingestible byte stream, opened lazily so parallel runs do
// not hold every file descriptor at once.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource returns a Source reading the file at path.
func FileSource(path string) Source {
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// Result pairs one source's report with its stream-level error, if any.
type Result struct {
	Report types.IngestReport
	Err    error
}

// All ingests every source, up to parallel at a time (sequentially when
// parallel <= 1). Each source gets its own pipeline instance; the
// collection serializes concurrent writers. A failing source is reported
// in its Result and never aborts the others. The returned error is non-nil
// only when ctx was cancelled.
func All(ctx context.Context, col *collection.Collection, sources []Source, parallel int, opts Options) ([]Result, error) {
	if parallel < 1 {
		parallel = 1
	}

	results := make([]Result, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			p := New(col, opts)
			report, err := p.ingestSource(ctx, src)
			results[i] = Result{Report: report, Err: err}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

func (p *Pipeline) ingestSource(ctx context.Context, src Source) (types.IngestReport, error) {
	rc, err := src.Open()
	if err != nil {
		return types.IngestReport{Source: src.Name}, &xmlstream.StreamError{Err: err}
	}
	defer rc.Close()
	return p.Ingest(ctx, src.Name, rc)
}
