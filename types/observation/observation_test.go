package observation

import (
	"compress/gzip"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := map[string]Kind{
		`{"bssid":"aa:bb","time":"2024-01-01T00:00:00Z","lat":1,"lon":2,"rssi":-50}`: KindObservation,
		`{"macaddr":"aa:bb","gpstime":1704067200,"lat":1,"lon":2,"signal":-50}`:      KindObservation,
		`{"time":"2024-01-01T00:00:00Z","lat":1,"lon":2}`:                            KindFix,
		`{"type":"fix","bssid":"aa:bb","lat":1,"lon":2}`:                             KindFix,
		`{"hello":"world"}`: KindUnknown,
		`[1,2,3]`:           KindUnknown,
	}
	for in, want := range cases {
		if got := Classify([]byte(in)); got != want {
			t.Errorf("Classify(%s) = %v, want %v", in, got, want)
		}
	}
}

func TestDecodeObservation(t *testing.T) {
	o, err := DecodeObservation([]byte(`{"macaddr":"aa-bb-cc-dd-ee-ff","gpstime":1704067200.5,"lat":45.5,"lon":-122.6,"signal":-61}`))
	if err != nil {
		t.Fatal(err)
	}
	if o.BSSID != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("bssid = %q", o.BSSID)
	}
	if !o.Time.Equal(time.Unix(1704067200, 5e8)) {
		t.Errorf("time = %v", o.Time)
	}
	if o.RSSI != -61 || o.Lat != 45.5 || o.Lon != -122.6 {
		t.Errorf("unexpected %+v", o)
	}
	if err := o.Validate(); err != nil {
		t.Error(err)
	}
}

func TestObservation_Validate(t *testing.T) {
	good := Observation{BSSID: "AA", Time: time.Unix(1, 0), Lat: 45, Lon: -122, RSSI: -60}
	cases := []struct {
		mut  func(o *Observation)
		want error
	}{
		{func(o *Observation) { o.BSSID = "" }, ErrEmptyBSSID},
		{func(o *Observation) { o.Time = time.Time{} }, ErrZeroTime},
		{func(o *Observation) { o.Lat = 91 }, ErrInvalidLatitude},
		{func(o *Observation) { o.Lon = math.NaN() }, ErrInvalidLongitude},
		{func(o *Observation) { o.Lat, o.Lon = 0, 0 }, ErrNullIsland},
		{func(o *Observation) { o.RSSI = math.NaN() }, ErrInvalidRSSI},
		{func(o *Observation) { o.RSSI = 12 }, ErrInvalidRSSI},
	}
	if err := good.Validate(); err != nil {
		t.Fatal(err)
	}
	for i, c := range cases {
		o := good
		c.mut(&o)
		if err := o.Validate(); !errors.Is(err, c.want) {
			t.Errorf("case %d: got %v, want %v", i, err, c.want)
		}
	}
}

const capture = `{"time":"2024-01-01T00:00:02Z","lat":45.0002,"lon":-122.0002}
{"time":"2024-01-01T00:00:00Z","lat":45.0000,"lon":-122.0000}
{"bssid":"aa:bb:cc:dd:ee:ff","time":"2024-01-01T00:00:01Z","lat":45.0001,"lon":-122.0001,"rssi":-50}
{"bssid":"aa:bb:cc:dd:ee:ff","time":"2024-01-01T00:00:01Z","lat":45.0001,"lon":-122.0001,"rssi":-50}
{"bssid":"aa:bb:cc:dd:ee:ff","time":"2024-01-01T00:00:00Z","lat":45.0000,"lon":-122.0000,"rssi":-55}
{"bssid":"","time":"2024-01-01T00:00:00Z","lat":45,"lon":-122,"rssi":-55}
{"bssid":"11:22","time":"2024-01-01T00:00:00Z","lat":0,"lon":0,"rssi":-55}
{"what":"ever"}
`

func TestRead(t *testing.T) {
	b, err := Read(context.Background(), strings.NewReader(capture))
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(b.Observations))
	}
	if len(b.Track) != 2 {
		t.Fatalf("expected 2 fixes, got %d", len(b.Track))
	}
	if b.Duplicates != 1 {
		t.Errorf("duplicates = %d", b.Duplicates)
	}
	if b.Skipped != 3 {
		t.Errorf("skipped = %d", b.Skipped)
	}
	if !b.Observations[0].Time.Before(b.Observations[1].Time) {
		t.Error("observations not time-sorted")
	}
	if !b.Track[0].Time.Before(b.Track[1].Time) {
		t.Error("track not time-sorted")
	}
}

func TestReadFile_GZ(t *testing.T) {
	p := filepath.Join(t.TempDir(), "capture.ndjson.gz")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	gzw := gzip.NewWriter(f)
	_, _ = gzw.Write([]byte(capture))
	_ = gzw.Close()
	_ = f.Close()

	b, err := ReadFile(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Observations) != 2 {
		t.Errorf("expected 2 observations, got %d", len(b.Observations))
	}
}

func TestObservations_Track(t *testing.T) {
	t0 := time.Unix(100, 0)
	obs := Observations{
		{BSSID: "A", Time: t0, Lat: 1, Lon: 1},
		{BSSID: "B", Time: t0, Lat: 1.5, Lon: 1},
		{BSSID: "A", Time: t0.Add(time.Second), Lat: 2, Lon: 2},
	}
	tr := obs.Track()
	if len(tr) != 3 {
		t.Fatalf("expected one fix per observation, got %d", len(tr))
	}
	for i := range obs {
		if tr[i].Time != obs[i].Time || tr[i].Lat != obs[i].Lat || tr[i].Lon != obs[i].Lon {
			t.Errorf("fix %d: %+v does not match %+v", i, tr[i], obs[i])
		}
	}
}
