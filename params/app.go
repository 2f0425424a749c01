package params

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"time"
)

const (
	EstimatesGZFileName = "estimates.ndjson.gz"
	EstimatesGeoJSON    = "estimates.geojson"
	CalibrationFileName = "calibration.yaml"
)

var DatadirRoot = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "aploc")
	}
	return filepath.Join(home, ".aploc")
}()

var StoreDBName = "aploc.db"
var EstimatesBucket = []byte("estimates")
var RunsBucket = []byte("runs")

// DefaultBatchSize bounds the ingest dedupe window and the store's read cache.
var DefaultBatchSize = 10_000

// DefaultStoreCacheSize is the number of decoded estimates kept in memory by the store.
var DefaultStoreCacheSize = 1_024

var DefaultGZipCompressionLevel = gzip.BestCompression

var (
	// CacheResponseTTL is how long the web daemon serves a cached listing
	// before going back to the store.
	CacheResponseTTL = 30 * time.Second
)
