package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"
)

// TimeAttrs are the record attributes, in order, read as a record's time for progress logging.
var TimeAttrs = []string{"time", "gpstime", "timestamp"}

// ScanRecords decodes a stream of concatenated (eg. newline-delimited) JSON values
// from reader and sends each one, undecoded, on the returned channel.
// A syntax error ends the scan; it is sent on the error channel,
// which is closed after the record channel.
func ScanRecords(ctx context.Context, reader io.Reader) (<-chan json.RawMessage, <-chan error) {
	out := make(chan json.RawMessage)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)

		met := newTickScanMeter(5 * time.Second)
		defer met.stop()
		defer func() {
			slog.Debug("Record scan done", "lines", humanize.Comma(met.total()),
				"running", time.Since(met.started).Round(time.Millisecond))
		}()

		dec := json.NewDecoder(reader)
		for {
			msg := json.RawMessage{}
			if err := dec.Decode(&msg); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				sendErr(errs, fmt.Errorf("scan records (after %d): %w", met.total(), err))
				return
			}
			met.mark(recordTime(msg), msg)
			select {
			case <-ctx.Done():
				sendErr(errs, ctx.Err())
				return
			case out <- msg:
			}
		}
	}()
	return out, errs
}

func recordTime(msg []byte) time.Time {
	for _, attr := range TimeAttrs {
		if r := gjson.GetBytes(msg, attr); r.Exists() {
			if r.Type == gjson.Number {
				return time.Unix(r.Int(), 0)
			}
			return r.Time()
		}
	}
	return time.Time{}
}

func sendErr(errs chan error, err error) {
	select {
	case errs <- err:
	default:
		slog.Warn("Dropped scan error", "error", err)
	}
}
