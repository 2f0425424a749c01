package influxdb

import (
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/estimate"
)

// EstimatePoint builds the point for one estimate, timestamped at (run end) t.
func EstimatePoint(measurement string, p estimate.Position, t time.Time) *write.Point {
	pt := influxdb2.NewPointWithMeasurement(measurement).
		SetTime(t).
		AddTag("bssid", p.BSSID.String()).
		AddTag("quality", string(p.Quality)).
		AddField("latitude", p.Lat).
		AddField("longitude", p.Lon).
		AddField("confidence", p.Confidence).
		AddField("sample_count", p.Samples).
		AddField("methods", len(p.Methods))

	if p.Cell != "" {
		pt.AddTag("s2_cell", p.Cell)
	}
	// Line protocol has no NaN.
	if p.Accuracy == p.Accuracy {
		pt.AddField("accuracy", p.Accuracy)
	}
	if p.LowConfidence {
		pt.AddField("low_confidence", 1)
	}
	for m, w := range p.Weights {
		pt.AddField("weight_"+m.String(), w)
	}
	return pt
}

// RunPoint builds the point summarizing a run, in measurement "<measurement>_run".
func RunPoint(measurement string, sum estimate.RunSummary) *write.Point {
	pt := influxdb2.NewPointWithMeasurement(measurement+"_run").
		SetTime(sum.Finished).
		AddField("observations", sum.Observations).
		AddField("skipped", sum.Skipped).
		AddField("outliers", sum.Outliers).
		AddField("groups", sum.Groups).
		AddField("estimates", sum.Estimates).
		AddField("failed", sum.Failed).
		AddField("mean_confidence", sum.MeanConfidence).
		AddField("median_confidence", sum.MedianConfidence).
		AddField("duration_ms", sum.Duration().Milliseconds())
	for q, n := range sum.Qualities {
		pt.AddField("quality_"+string(q), n)
	}
	return pt
}

// Export posts a run's estimates and its summary to an InfluxDB Write API.
// The Write API will buffer and flush. The last error encountered is returned.
func Export(cfg *params.InfluxDBConfig, sum estimate.RunSummary, ps []estimate.Position) error {
	if cfg == nil || cfg.URL == "" {
		return fmt.Errorf("influxdb: no url configured")
	}
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	// Errors returns a channel for reading errors which occurs during async writes.
	// Must be called before performing any writes for errors to be collected.
	// The chan is unbuffered and must be drained or the writer will block.
	// https://github.com/influxdata/influxdb-client-go?tab=readme-ov-file#reading-async-errors
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, p := range ps {
		writeAPI.WritePoint(EstimatePoint(cfg.Measurement, p, sum.Finished))
	}
	writeAPI.WritePoint(RunPoint(cfg.Measurement, sum))

	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}
