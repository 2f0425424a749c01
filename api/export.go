package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/aploc/catz"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/estimate"
)

// WriteNDJSON writes one estimate per line.
func WriteNDJSON(w io.Writer, ps []estimate.Position) error {
	enc := json.NewEncoder(w)
	for _, p := range ps {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

// WriteGeoJSON writes the estimates as one FeatureCollection.
// With cells, each estimate's S2 cell polygon is included too.
func WriteGeoJSON(w io.Writer, ps []estimate.Position, cells bool) error {
	b, err := estimate.ToFeatureCollection(ps, cells).MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// ExportFlat writes a run's estimates into f as gzipped NDJSON and as GeoJSON.
// Existing exports are replaced.
func ExportFlat(f *catz.Flat, ps []estimate.Position) error {
	if err := f.MkdirAll(); err != nil {
		return err
	}

	wr, err := f.NewGZFileWriter(params.EstimatesGZFileName, nil)
	if err != nil {
		return err
	}
	if err := WriteNDJSON(wr, ps); err != nil {
		_ = wr.Close()
		return err
	}
	if err := wr.Close(); err != nil {
		return err
	}

	gj, err := os.Create(filepath.Join(f.Path(), params.EstimatesGeoJSON))
	if err != nil {
		return err
	}
	if err := WriteGeoJSON(gj, ps, false); err != nil {
		_ = gj.Close()
		return err
	}
	if err := gj.Close(); err != nil {
		return err
	}

	slog.Info("Exported estimates", "dir", f.Path(), "count", humanize.Comma(int64(len(ps))))
	return nil
}
