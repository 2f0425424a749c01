package stream

import (
	"context"
	"slices"
	"strings"
	"testing"
)

func divideByTwo(n int) int {
	return n / 2
}

func isNonZero(n int) bool {
	return n != 0
}

func TestStream1(t *testing.T) {
	data := []int{0, 2, 4, 6, 8}
	ctx := context.Background()
	myStream := Slice(ctx, data)
	result := Collect(ctx,
		Transform(ctx, divideByTwo,
			Filter(ctx, isNonZero,
				myStream)))

	if !slices.Equal([]int{1, 2, 3, 4}, result) {
		t.Errorf("Expected [1, 2, 3, 4], got %v", result)
	}
}

func TestNDJSON(t *testing.T) {
	type rec struct {
		N int `json:"n"`
	}
	ctx := context.Background()
	in := strings.NewReader(`{"n":1}
{"n":2}
{"n":3}
`)
	result := Collect(ctx, NDJSON[rec](ctx, in))
	if len(result) != 3 || result[2].N != 3 {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestNDJSON_BadInput(t *testing.T) {
	type rec struct {
		N int `json:"n"`
	}
	ctx := context.Background()
	in := strings.NewReader(`{"n":1}
{"n":"two"}
{"n":3}
{"n": nope
{"n":5}
`)
	result := Collect(ctx, NDJSON[rec](ctx, in))
	if len(result) != 2 || result[0].N != 1 || result[1].N != 3 {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestScanRecords(t *testing.T) {
	ctx := context.Background()
	in := strings.NewReader(`{"time":"2024-01-01T00:00:00Z","lat":1}
{"gpstime":1704067201,"lat":2}
{"lat":3}
`)
	recs, errs := ScanRecords(ctx, in)
	got := Collect(ctx, recs)
	for err := range errs {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if recordTime(got[1]).Unix() != 1704067201 {
		t.Errorf("gpstime not read: %v", recordTime(got[1]))
	}
	if !recordTime(got[2]).IsZero() {
		t.Error("expected zero time for record without time")
	}
}

func TestScanRecords_SyntaxError(t *testing.T) {
	ctx := context.Background()
	in := strings.NewReader(`{"lat":1}
{"lat":
`)
	recs, errs := ScanRecords(ctx, in)
	got := Collect(ctx, recs)
	if len(got) != 1 {
		t.Errorf("expected 1 record before the error, got %d", len(got))
	}
	var n int
	for range errs {
		n++
	}
	if n != 1 {
		t.Errorf("expected 1 error, got %d", n)
	}
}
