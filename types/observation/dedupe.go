package observation

import (
	"fmt"

	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/aploc/params"
)

// dedupeKey is what makes two records the same.
// time.Time has only unexported fields, which hashstructure cannot see, so the instant is hashed as nanoseconds.
type dedupeKey struct {
	Kind  Kind
	BSSID string
	Nanos int64
	Lat   float64
	Lon   float64
	RSSI  float64
}

// NewDedupeLRUFunc returns a predicate that passes the first sighting of a record
// and rejects repeats seen within the last params.DefaultBatchSize distinct records.
func NewDedupeLRUFunc() func(kind Kind, o Observation) bool {
	var dedupeCache = lru.New(params.DefaultBatchSize)
	return func(kind Kind, o Observation) bool {
		k := dedupeKey{
			Kind:  kind,
			BSSID: o.BSSID.String(),
			Nanos: o.Time.UnixNano(),
			Lat:   o.Lat,
			Lon:   o.Lon,
			RSSI:  o.RSSI,
		}
		if kind == KindFix {
			k.RSSI = 0
		}
		hash, err := hashstructure.Hash(k, hashstructure.FormatV2, nil)
		if err != nil {
			return true
		}
		key := fmt.Sprintf("%d", hash)
		if _, ok := dedupeCache.Get(key); ok {
			return false
		}
		dedupeCache.Add(key, true)
		return true
	}
}
