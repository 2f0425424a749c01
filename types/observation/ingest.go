package observation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/aploc/catz"
	"github.com/rotblauer/aploc/stream"
)

// Batch is the bounded input of one localization run.
type Batch struct {
	Track        TrackPoints
	Observations Observations

	// Skipped counts records that were unknown or failed validation.
	Skipped int
	// Duplicates counts exact repeats that were dropped.
	Duplicates int
}

type record struct {
	kind Kind
	obs  Observation
	err  error
	raw  json.RawMessage
}

func decodeRecord(msg json.RawMessage) record {
	r := record{kind: Classify(msg), raw: msg}
	switch r.kind {
	case KindObservation:
		r.obs, r.err = DecodeObservation(msg)
		if r.err == nil {
			r.err = r.obs.Validate()
		}
	case KindFix:
		var tp TrackPoint
		tp, r.err = DecodeFix(msg)
		if r.err == nil {
			r.err = tp.Validate()
		}
		r.obs = Observation{Time: tp.Time, Lat: tp.Lat, Lon: tp.Lon}
	default:
		r.err = ErrUnknownRecord
	}
	return r
}

// Read decodes a stream of NDJSON observation and fix records.
// Invalid records are logged and skipped, exact duplicates are dropped,
// and both the track and the observations come back time-sorted.
func Read(ctx context.Context, r io.Reader) (*Batch, error) {
	b := &Batch{}
	dedupe := NewDedupeLRUFunc()

	raw, errs := stream.ScanRecords(ctx, r)
	valid := stream.Filter(ctx, func(rec record) bool {
		if rec.err != nil {
			b.Skipped++
			slog.Debug("Skipping record", "kind", rec.kind, "error", rec.err, "record", string(rec.raw))
			return false
		}
		if !dedupe(rec.kind, rec.obs) {
			b.Duplicates++
			return false
		}
		return true
	}, stream.Transform(ctx, decodeRecord, raw))

	for _, rec := range stream.Collect(ctx, valid) {
		switch rec.kind {
		case KindObservation:
			b.Observations = append(b.Observations, rec.obs)
		case KindFix:
			b.Track = append(b.Track, TrackPoint{Time: rec.obs.Time, Lat: rec.obs.Lat, Lon: rec.obs.Lon})
		}
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Stable(b.Track)
	sort.Stable(b.Observations)

	slog.Info("Read capture",
		"observations", humanize.Comma(int64(len(b.Observations))),
		"fixes", humanize.Comma(int64(len(b.Track))),
		"skipped", b.Skipped, "duplicates", b.Duplicates)
	return b, nil
}

// ReadFile reads a plain or gzipped NDJSON capture file. "-" reads stdin.
func ReadFile(ctx context.Context, path string) (*Batch, error) {
	rc, err := catz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer rc.Close()
	b, err := Read(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("read capture %s: %w", path, err)
	}
	return b, nil
}

// Merge appends other's records to b and restores time order.
func (b *Batch) Merge(other *Batch) {
	b.Track = append(b.Track, other.Track...)
	b.Observations = append(b.Observations, other.Observations...)
	b.Skipped += other.Skipped
	b.Duplicates += other.Duplicates
	sort.Stable(b.Track)
	sort.Stable(b.Observations)
}
