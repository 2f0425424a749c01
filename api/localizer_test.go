package api

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/conceptual"
	"github.com/rotblauer/aploc/geo/smooth"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/testing/testdata"
	"github.com/rotblauer/aploc/types/estimate"
	"github.com/rotblauer/aploc/types/observation"
)

var t0 = time.Date(2024, 12, 23, 15, 31, 0, 0, time.UTC)

func mustLocalizer(t *testing.T, cfg *params.LocalizationConfig) *Localizer {
	t.Helper()
	l, err := NewLocalizer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestLocalize_ThreeObservations(t *testing.T) {
	cfg := params.DefaultLocalizationConfig()
	cfg.PathLossReferenceRSSI = -40
	cfg.PathLossExponent = 2.7
	l := mustLocalizer(t, cfg)

	bssid := conceptual.NewBSSID("aa:bb:cc:dd:ee:ff")
	obs := observation.Observations{
		{BSSID: bssid, Time: t0, Lat: 37.7749, Lon: -122.4194, RSSI: -50},
		{BSSID: bssid, Time: t0.Add(10 * time.Second), Lat: 37.7750, Lon: -122.4195, RSSI: -55},
		{BSSID: bssid, Time: t0.Add(20 * time.Second), Lat: 37.7751, Lon: -122.4193, RSSI: -60},
	}
	got, err := l.Localize(context.Background(), nil, obs)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 estimate, got %d", len(got))
	}
	p := got[0]
	if p.BSSID != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("bssid: %q", p.BSSID)
	}
	if p.Samples != 3 {
		t.Errorf("sample_count: want 3, got %d", p.Samples)
	}
	if !(p.Confidence > 0 && p.Confidence < 1) {
		t.Errorf("confidence out of (0, 1): %v", p.Confidence)
	}
	if !p.HasMethod(estimate.MethodCentroid) {
		t.Errorf("centroid should always contribute: %v", p.Methods)
	}
	if p.Cell == "" {
		t.Error("missing s2 cell")
	}
	// Anything from these observations lands within a few hundred meters of them.
	if d := common.DistanceMeters(p.Point(), obs[1].Point()); d > 500 {
		t.Errorf("estimate %v is %.0f m from the observations", p.Point(), d)
	}
}

func TestLocalize_ReferenceScenario(t *testing.T) {
	cfg := params.DefaultLocalizationConfig()
	cfg.PathLossReferenceRSSI = -40
	cfg.PathLossExponent = 2.7
	l := mustLocalizer(t, cfg)

	bssid := conceptual.NewBSSID("AA:BB:CC:DD:EE:FF")
	obs := observation.Observations{
		{BSSID: bssid, Time: t0, Lat: 37.700, Lon: -122.500, RSSI: -40},
		{BSSID: bssid, Time: t0.Add(10 * time.Second), Lat: 37.701, Lon: -122.501, RSSI: -55},
		{BSSID: bssid, Time: t0.Add(20 * time.Second), Lat: 37.702, Lon: -122.499, RSSI: -50},
	}
	got, err := l.Localize(context.Background(), nil, obs)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 estimate, got %d", len(got))
	}
	p := got[0]
	if p.BSSID != bssid {
		t.Errorf("bssid: %q", p.BSSID)
	}
	if p.Samples != 3 {
		t.Errorf("sample_count: want 3, got %d", p.Samples)
	}
	if !(p.Confidence > 0 && p.Confidence < 1) {
		t.Errorf("confidence out of (0, 1): %v", p.Confidence)
	}
}

func TestLocalize_KalmanDisabledKeepsPositions(t *testing.T) {
	cfg := params.DefaultLocalizationConfig()
	cfg.KalmanEnable = false
	cfg.UseMultilateration = false
	cfg.UseBayesian = false
	l := mustLocalizer(t, cfg)

	// Same timestamp, three places.
	bssid := conceptual.NewBSSID("AA:BB:CC:DD:EE:FF")
	obs := observation.Observations{
		{BSSID: bssid, Time: t0, Lat: 37.700, Lon: -122.500, RSSI: -60},
		{BSSID: bssid, Time: t0, Lat: 37.701, Lon: -122.501, RSSI: -60},
		{BSSID: bssid, Time: t0, Lat: 37.702, Lon: -122.499, RSSI: -60},
	}
	got, err := l.Localize(context.Background(), nil, obs)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 estimate, got %d", len(got))
	}
	if p := got[0]; math.Abs(p.Lat-37.701) > 1e-9 || math.Abs(p.Lon+122.500) > 1e-9 {
		t.Errorf("want the mean position 37.701,-122.500, got %.9f,%.9f", p.Lat, p.Lon)
	}
	if got[0].Samples != 3 {
		t.Errorf("sample_count: %d", got[0].Samples)
	}
}

func TestRelocate_OwnTrackOnePointPerObservation(t *testing.T) {
	cfg := params.DefaultLocalizationConfig()
	cfg.TrackMaxSpeed = 0
	l := mustLocalizer(t, cfg)

	valid := observation.Observations{
		{BSSID: "AA:BB:CC:DD:EE:01", Time: t0, Lat: 37.700, Lon: -122.500, RSSI: -60},
		{BSSID: "AA:BB:CC:DD:EE:02", Time: t0, Lat: 37.701, Lon: -122.501, RSSI: -60},
		{BSSID: "AA:BB:CC:DD:EE:03", Time: t0, Lat: 37.702, Lon: -122.499, RSSI: -60},
		{BSSID: "AA:BB:CC:DD:EE:01", Time: t0.Add(time.Second), Lat: 37.7021, Lon: -122.499, RSSI: -60},
	}
	cleaned, n, err := l.relocate(context.Background(), nil, valid)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(valid) || len(cleaned) != len(valid) {
		t.Fatalf("want %d track points and observations, got %d and %d", len(valid), n, len(cleaned))
	}
	want, err := smooth.Track(l.Config(), valid.Track())
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range cleaned {
		if c.BSSID != valid[i].BSSID || !c.Time.Equal(valid[i].Time) {
			t.Errorf("observation %d changed identity: %+v", i, c.Observation)
		}
		if c.Lat != want[i].Lat || c.Lon != want[i].Lon {
			t.Errorf("observation %d: want its own smoothed point %v, got %v", i, want[i].Point(), c.Point())
		}
	}
	if cleaned[1].Point() == cleaned[0].Point() {
		t.Error("same-timestamp observations collapsed onto one position")
	}

	// Disabled smoothing passes positions through.
	cfg.KalmanEnable = false
	cleaned, _, err = mustLocalizer(t, cfg).relocate(context.Background(), nil, valid)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range cleaned {
		if c.Point() != valid[i].Point() {
			t.Errorf("observation %d moved with smoothing off: %v -> %v", i, valid[i].Point(), c.Point())
		}
	}
}

func TestLocalize_ConfidenceGrowsWithRepeats(t *testing.T) {
	cfg := params.DefaultLocalizationConfig()
	cfg.KalmanEnable = false
	l := mustLocalizer(t, cfg)

	bssid := conceptual.NewBSSID("AA:BB:CC:DD:EE:FF")
	spots := []struct{ lat, lon, rssi float64 }{
		{44.98896, -93.25549, -55},
		{44.98926, -93.25549, -60},
		{44.98926, -93.25519, -65},
		{44.98896, -93.25519, -70},
	}
	var prev *estimate.Position
	for n := len(spots); n <= 12; n++ {
		obs := make(observation.Observations, n)
		for i := range obs {
			sp := spots[i%len(spots)]
			obs[i] = observation.Observation{BSSID: bssid, Time: t0.Add(time.Duration(i) * time.Second), Lat: sp.lat, Lon: sp.lon, RSSI: sp.rssi}
		}
		got, err := l.Localize(context.Background(), nil, obs)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("n=%d: want 1 estimate, got %d", n, len(got))
		}
		p := got[0]
		if p.Samples != n {
			t.Errorf("n=%d: sample_count %d", n, p.Samples)
		}
		if prev != nil {
			if p.Confidence < prev.Confidence {
				t.Errorf("n=%d: confidence fell from %.4f to %.4f", n, prev.Confidence, p.Confidence)
			}
			if p.Lat != prev.Lat || p.Lon != prev.Lon {
				t.Errorf("n=%d: repeating readings moved the estimate: %v -> %v", n, prev.Point(), p.Point())
			}
		}
		prev = &p
	}
}

func TestLocalize_FirstFixGlitch(t *testing.T) {
	l := mustLocalizer(t, nil)
	bssid := conceptual.NewBSSID("AA:BB:CC:DD:EE:FF")

	// The first fix is ~5 km off; the observer then sits still for 200 seconds.
	track := observation.TrackPoints{{Time: t0, Lat: 45.545, Lon: -122.6}}
	var obs observation.Observations
	for i := 1; i <= 200; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		track = append(track, observation.TrackPoint{Time: at, Lat: 45.5, Lon: -122.6})
		obs = append(obs, observation.Observation{BSSID: bssid, Time: at, Lat: 45.5, Lon: -122.6, RSSI: -60})
	}
	run, err := l.Run(context.Background(), track, obs)
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Estimates) != 1 {
		t.Fatalf("want 1 estimate, got %d", len(run.Estimates))
	}
	if p := run.Estimates[0]; p.Samples != 200 {
		t.Errorf("want every observation kept, got sample_count %d (outliers %d)", p.Samples, run.Summary.Outliers)
	}
	if run.Summary.TrackPoints != 200 {
		t.Errorf("track points: want 200, got %d", run.Summary.TrackPoints)
	}
}

func TestLocalize_SingleObservation(t *testing.T) {
	l := mustLocalizer(t, nil)
	o := observation.Observation{
		BSSID: conceptual.NewBSSID("AA:BB:CC:DD:EE:01"),
		Time:  t0, Lat: 37.7749, Lon: -122.4194, RSSI: -50,
	}
	got, err := l.Localize(context.Background(), nil, observation.Observations{o})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 estimate, got %d", len(got))
	}
	p := got[0]
	if math.Abs(p.Lat-o.Lat) > 1e-9 || math.Abs(p.Lon-o.Lon) > 1e-9 {
		t.Errorf("want estimate at the observation, got %v", p.Point())
	}
	if want := []estimate.Method{estimate.MethodCentroid}; !reflect.DeepEqual(p.Methods, want) {
		t.Errorf("methods: want %v, got %v", want, p.Methods)
	}
	if !p.LowConfidence {
		t.Error("want low_confidence")
	}
	if p.Confidence >= 0.2 {
		t.Errorf("want low confidence, got %v", p.Confidence)
	}
	if p.Samples != 1 {
		t.Errorf("sample_count: %d", p.Samples)
	}
}

func TestLocalize_Empty(t *testing.T) {
	l := mustLocalizer(t, nil)
	run, err := l.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Estimates) != 0 {
		t.Errorf("want no estimates, got %d", len(run.Estimates))
	}
	if run.Summary.Groups != 0 {
		t.Errorf("groups: %d", run.Summary.Groups)
	}
}

func TestLocalize_SkipsInvalid(t *testing.T) {
	l := mustLocalizer(t, nil)
	obs := observation.Observations{
		{BSSID: "AA:BB:CC:DD:EE:01", Time: t0, Lat: 37.7749, Lon: -122.4194, RSSI: -50},
		{BSSID: "AA:BB:CC:DD:EE:02", Time: t0, Lat: 0, Lon: 0, RSSI: -50},
		{BSSID: "", Time: t0, Lat: 37.7749, Lon: -122.4194, RSSI: -50},
		{BSSID: "AA:BB:CC:DD:EE:03", Time: t0, Lat: 37.7749, Lon: -122.4194, RSSI: math.NaN()},
	}
	run, err := l.Run(context.Background(), nil, obs)
	if err != nil {
		t.Fatal(err)
	}
	if run.Summary.Skipped != 3 {
		t.Errorf("skipped: want 3, got %d", run.Summary.Skipped)
	}
	if len(run.Estimates) != 1 || run.Estimates[0].BSSID != "AA:BB:CC:DD:EE:01" {
		t.Errorf("unexpected estimates: %+v", run.Estimates)
	}
}

func TestLocalize_Drive(t *testing.T) {
	dc := testdata.DefaultDriveConfig()
	aps := testdata.GridAPs(dc.Origin, 9, 40)
	track, obs := testdata.Drive(dc, aps)

	l := mustLocalizer(t, nil)
	run, err := l.Run(context.Background(), track, obs)
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Estimates) != len(aps) {
		t.Fatalf("want %d estimates, got %d", len(aps), len(run.Estimates))
	}
	for i, p := range run.Estimates {
		if i > 0 && run.Estimates[i-1].BSSID >= p.BSSID {
			t.Errorf("estimates not sorted by bssid at %d", i)
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			t.Errorf("%s: confidence %v", p.BSSID, p.Confidence)
		}
	}
	// The loop surrounds the grid, so the estimates should be close.
	for _, ap := range aps {
		for _, p := range run.Estimates {
			if p.BSSID != ap.BSSID {
				continue
			}
			if d := common.DistanceMeters(p.Point(), ap.Point()); d > 60 {
				t.Errorf("%s: estimate is %.1f m from truth", ap.BSSID, d)
			}
		}
	}
	if run.Summary.Estimates != len(aps) || run.Summary.MeanConfidence <= 0 {
		t.Errorf("unexpected summary: %+v", run.Summary)
	}
}

func TestLocalize_ParallelMatchesSequential(t *testing.T) {
	dc := testdata.DefaultDriveConfig()
	dc.RSSINoise = 4
	aps := testdata.GridAPs(dc.Origin, 16, 30)
	track, obs := testdata.Drive(dc, aps)

	seqCfg := params.DefaultLocalizationConfig()
	seqCfg.Workers = 1
	parCfg := params.DefaultLocalizationConfig()
	parCfg.Workers = 8

	seq, err := mustLocalizer(t, seqCfg).Localize(context.Background(), track, obs)
	if err != nil {
		t.Fatal(err)
	}
	par, err := mustLocalizer(t, parCfg).Localize(context.Background(), track, obs)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(seq, par) {
		t.Error("parallel results differ from sequential")
	}
}

func TestLocalize_SubscribeEstimates(t *testing.T) {
	dc := testdata.DefaultDriveConfig()
	aps := testdata.GridAPs(dc.Origin, 4, 40)
	track, obs := testdata.Drive(dc, aps)

	l := mustLocalizer(t, nil)
	ch := make(chan estimate.Position, len(aps))
	sub := l.SubscribeEstimates(ch)
	defer sub.Unsubscribe()

	got, err := l.Localize(context.Background(), track, obs)
	if err != nil {
		t.Fatal(err)
	}
	for i := range got {
		select {
		case p := <-ch:
			if p.BSSID != got[i].BSSID {
				t.Errorf("feed order: want %s, got %s", got[i].BSSID, p.BSSID)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for feed")
		}
	}
}

func TestLocalize_Canceled(t *testing.T) {
	dc := testdata.DefaultDriveConfig()
	track, obs := testdata.Drive(dc, testdata.GridAPs(dc.Origin, 4, 40))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mustLocalizer(t, nil).Localize(ctx, track, obs)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestNewLocalizer_ConfigError(t *testing.T) {
	cfg := params.DefaultLocalizationConfig()
	cfg.PathLossExponent = 0
	cfg.BayesianGridSize = 1
	_, err := NewLocalizer(cfg)
	if err == nil {
		t.Fatal("want error")
	}
	var ce params.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("want a ConfigError, got %T: %v", err, err)
	}
}

func TestNewLocalizer_CopiesConfig(t *testing.T) {
	cfg := params.DefaultLocalizationConfig()
	l := mustLocalizer(t, cfg)
	cfg.PathLossExponent = 99
	if l.Config().PathLossExponent == 99 {
		t.Error("localizer shares caller's config")
	}
}
