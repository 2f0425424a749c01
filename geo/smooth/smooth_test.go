package smooth

import (
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/observation"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// noisyWalk is a straight walk north-east at 1.5 m/s, one fix per second,
// with fixes alternately pushed 8 m either side of the path.
func noisyWalk(n int) (truth, noisy observation.TrackPoints) {
	frame := common.NewLocalFrame(orb.Point{-122.6, 45.5})
	for i := 0; i < n; i++ {
		d := 1.5 * float64(i)
		x, y := d/math.Sqrt2, d/math.Sqrt2
		jitter := 8.0
		if i%2 == 1 {
			jitter = -8.0
		}
		tp := frame.FromXY(x, y)
		np := frame.FromXY(x+jitter/math.Sqrt2, y-jitter/math.Sqrt2)
		at := t0.Add(time.Duration(i) * time.Second)
		truth = append(truth, observation.TrackPoint{Time: at, Lat: tp.Lat(), Lon: tp.Lon()})
		noisy = append(noisy, observation.TrackPoint{Time: at, Lat: np.Lat(), Lon: np.Lon()})
	}
	return
}

func totalShift(a, b observation.TrackPoints) float64 {
	sum := 0.0
	for i := range a {
		sum += common.DistanceMeters(a[i].Point(), b[i].Point())
	}
	return sum
}

func TestTrack_SameLength(t *testing.T) {
	_, noisy := noisyWalk(40)
	out, err := Track(params.DefaultLocalizationConfig(), noisy)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(noisy) {
		t.Fatalf("len %d != %d", len(out), len(noisy))
	}
	for i := range out {
		if !out[i].Time.Equal(noisy[i].Time) {
			t.Fatalf("time changed at %d", i)
		}
	}
}

func TestTrack_ReducesNoise(t *testing.T) {
	truth, noisy := noisyWalk(60)
	out, err := Track(params.DefaultLocalizationConfig(), noisy)
	if err != nil {
		t.Fatal(err)
	}
	before := totalShift(truth, noisy)
	after := totalShift(truth, out)
	t.Logf("error before %.1f m, after %.1f m", before, after)
	if after >= before {
		t.Errorf("smoothing did not reduce error: %.1f >= %.1f", after, before)
	}
}

func TestTrack_Idempotence(t *testing.T) {
	cfg := params.DefaultLocalizationConfig()
	_, noisy := noisyWalk(60)
	once, err := Track(cfg, noisy)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Track(cfg, once)
	if err != nil {
		t.Fatal(err)
	}
	first := totalShift(noisy, once)
	second := totalShift(once, twice)
	t.Logf("first pass moved %.1f m, second %.1f m", first, second)
	if second >= first {
		t.Errorf("second pass moved points more than the first: %.1f >= %.1f", second, first)
	}
}

func TestTrack_Deterministic(t *testing.T) {
	cfg := params.DefaultLocalizationConfig()
	_, noisy := noisyWalk(30)
	a, _ := Track(cfg, noisy)
	b, _ := Track(cfg, noisy)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("runs differ at %d", i)
		}
	}
}

func TestTrack_Identity(t *testing.T) {
	_, noisy := noisyWalk(10)

	cfg := params.DefaultLocalizationConfig()
	cfg.KalmanEnable = false
	out, err := Track(cfg, noisy)
	if err != nil {
		t.Fatal(err)
	}
	if totalShift(noisy, out) != 0 {
		t.Error("disabled smoothing changed the track")
	}

	single := noisy[:1]
	out, err = Track(params.DefaultLocalizationConfig(), single)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0] != single[0] {
		t.Errorf("single point changed: %+v", out)
	}

	out, err = Track(params.DefaultLocalizationConfig(), nil)
	if err != nil || len(out) != 0 {
		t.Errorf("empty track: %v %v", out, err)
	}
}

func TestTrack_BackwardsTime(t *testing.T) {
	_, noisy := noisyWalk(10)
	noisy[5].Time = noisy[2].Time
	out, err := Track(params.DefaultLocalizationConfig(), noisy)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(noisy) {
		t.Fatal("length changed")
	}
	if !out[5].Time.Equal(noisy[5].Time) {
		t.Error("timestamps must pass through unchanged")
	}
}

func TestAt(t *testing.T) {
	track := observation.TrackPoints{
		{Time: t0, Lat: 45, Lon: -122},
		{Time: t0.Add(10 * time.Second), Lat: 45.001, Lon: -122.002},
	}
	p, ok := At(track, t0.Add(5*time.Second))
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(p.Lat()-45.0005) > 1e-12 || math.Abs(p.Lon()+122.001) > 1e-12 {
		t.Errorf("interpolated %v", p)
	}
	if p, ok := At(track, t0); !ok || p != track[0].Point() {
		t.Errorf("at first fix: %v %v", p, ok)
	}
	if _, ok := At(track, t0.Add(-time.Second)); ok {
		t.Error("before range should not be ok")
	}
	if _, ok := At(track, t0.Add(11*time.Second)); ok {
		t.Error("after range should not be ok")
	}
}

func TestRelocate(t *testing.T) {
	track := observation.TrackPoints{
		{Time: t0, Lat: 45, Lon: -122},
		{Time: t0.Add(10 * time.Second), Lat: 45.001, Lon: -122.002},
	}
	obs := []observation.Observation{
		{BSSID: "A", Time: t0.Add(10 * time.Second), Lat: 1, Lon: 1, RSSI: -50},
		{BSSID: "A", Time: t0.Add(time.Hour), Lat: 2, Lon: 2, RSSI: -50},
	}
	got := Relocate(track, obs)
	if got[0].Lat != 45.001 || got[0].Lon != -122.002 {
		t.Errorf("in-range observation not moved: %+v", got[0])
	}
	if got[1].Lat != 2 || got[1].Lon != 2 {
		t.Errorf("out-of-range observation moved: %+v", got[1])
	}
	if got[0].RSSI != -50 || got[0].BSSID != "A" {
		t.Error("relocation changed non-position fields")
	}
}
