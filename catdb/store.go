// Package catdb persists localization results: the latest estimate per
// access point and a summary of every run.
package catdb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotblauer/aploc/catz"
	"github.com/rotblauer/aploc/conceptual"
	"github.com/rotblauer/aploc/events"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/estimate"
	"go.etcd.io/bbolt"
)

var ErrReadOnly = errors.New("store is read-only")

// Store is a bbolt database of estimates, keyed by BSSID, and run summaries, keyed by run id.
// Writing an estimate replaces the previous one for that BSSID.
type Store struct {
	DB   *bbolt.DB
	Flat *catz.Flat

	cache  *lru.Cache[conceptual.BSSID, estimate.Position]
	rOnly  bool
	logger *slog.Logger
}

// Open opens (creating if needed, unless readOnly) the store in dir.
// A writable store holds an exclusive file lock on the database until Close.
func Open(dir string, readOnly bool) (*Store, error) {
	f := catz.NewFlatWithRoot(dir)
	if !readOnly {
		if err := f.MkdirAll(); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(filepath.Join(f.Path(), params.StoreDBName), 0600, &bbolt.Options{
		ReadOnly: readOnly,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if !readOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			for _, b := range [][]byte{params.EstimatesBucket, params.RunsBucket} {
				if _, err := tx.CreateBucketIfNotExists(b); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	cache, err := lru.New[conceptual.BSSID, estimate.Position](params.DefaultStoreCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{
		DB:     db,
		Flat:   f,
		cache:  cache,
		rOnly:  readOnly,
		logger: slog.With("component", "store", "path", db.Path()),
	}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) ReadOnly() bool {
	return s.rOnly
}

// PutEstimates stores ps in one transaction.
// Each stored estimate is then cached and sent on events.StoredEstimateFeed.
func (s *Store) PutEstimates(ps []estimate.Position) error {
	if s.rOnly {
		return ErrReadOnly
	}
	if len(ps) == 0 {
		return nil
	}
	err := s.DB.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(params.EstimatesBucket)
		for _, p := range ps {
			if p.BSSID.IsEmpty() {
				return fmt.Errorf("store estimate: empty bssid")
			}
			b, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(p.BSSID), b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, p := range ps {
		s.cache.Add(p.BSSID, p)
		events.StoredEstimateFeed.Send(p)
	}
	s.logger.Debug("Stored estimates", "count", len(ps))
	return nil
}

// PutRun stores a run summary and sends it on events.RunCompletedFeed.
func (s *Store) PutRun(sum estimate.RunSummary) error {
	if s.rOnly {
		return ErrReadOnly
	}
	if sum.ID == "" {
		sum.ID = estimate.RunID(sum.Started)
	}
	b, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	err = s.DB.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(params.RunsBucket).Put([]byte(sum.ID), b)
	})
	if err != nil {
		return err
	}
	events.RunCompletedFeed.Send(sum)
	return nil
}

func (s *Store) readKV(bucketName, key []byte) ([]byte, error) {
	buf := bytes.NewBuffer([]byte{})
	err := s.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return nil
		}

		// The value returned by Get is only valid in the scope of the transaction.
		got := bucket.Get(key)
		if got == nil {
			return nil
		}
		_, err := buf.Write(got)
		return err
	})
	if buf.Len() == 0 {
		return nil, err
	}
	return buf.Bytes(), err
}

// Estimate returns the stored estimate for bssid. ok is false if there is none.
func (s *Store) Estimate(bssid conceptual.BSSID) (p estimate.Position, ok bool, err error) {
	if p, ok := s.cache.Get(bssid); ok {
		return p, true, nil
	}
	got, err := s.readKV(params.EstimatesBucket, []byte(bssid))
	if err != nil || got == nil {
		return p, false, err
	}
	if err := json.Unmarshal(got, &p); err != nil {
		return p, false, fmt.Errorf("decode estimate %s: %w", bssid, err)
	}
	s.cache.Add(bssid, p)
	return p, true, nil
}

// Estimates returns every stored estimate, sorted by BSSID.
func (s *Store) Estimates() (estimate.Positions, error) {
	var out estimate.Positions
	err := s.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(params.EstimatesBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var p estimate.Position
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decode estimate %s: %w", k, err)
			}
			out = append(out, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(out)
	return out, nil
}

// Count returns the number of stored estimates.
func (s *Store) Count() (n int, err error) {
	err = s.DB.View(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket(params.EstimatesBucket); bucket != nil {
			n = bucket.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Runs returns up to limit run summaries, newest first. limit <= 0 returns all.
func (s *Store) Runs(limit int) ([]estimate.RunSummary, error) {
	var out []estimate.RunSummary
	err := s.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(params.RunsBucket)
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var sum estimate.RunSummary
			if err := json.Unmarshal(v, &sum); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			out = append(out, sum)
		}
		return nil
	})
	return out, err
}

// LastRun returns the most recent run summary, or nil if none is stored.
func (s *Store) LastRun() (*estimate.RunSummary, error) {
	runs, err := s.Runs(1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}
