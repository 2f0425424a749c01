package api

import (
	"context"
	"os"
	"testing"

	"github.com/rotblauer/aploc/catz"
	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/stream"
	"github.com/rotblauer/aploc/types/estimate"
)

// assertGZFileValidEstimates checks that path is a non-empty gzipped NDJSON file
// of estimates, each with a BSSID, finite coordinates and a confidence in [0, 1].
// It returns the decoded estimates.
func assertGZFileValidEstimates(t *testing.T, path string) []estimate.Position {
	t.Helper()
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if stat.Size() == 0 {
		t.Fatal("file is empty")
	}

	gzr, err := catz.NewGZFileReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer gzr.Close()

	ctx := context.Background()
	out := stream.Collect(ctx, stream.NDJSON[estimate.Position](ctx, gzr))
	if len(out) == 0 {
		t.Fatal("no estimates")
	}
	for _, p := range out {
		if p.BSSID == "" {
			t.Error("estimate without bssid", p)
		}
		if !common.IsFinite(p.Lat) || !common.IsFinite(p.Lon) {
			t.Error("non-finite coordinates", p)
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			t.Error("confidence out of range", p)
		}
	}
	return out
}
