package events

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/aploc/types/estimate"
)

// StoredEstimateFeed is emitted for every estimate that is successfully persisted.
var StoredEstimateFeed = event.FeedOf[estimate.Position]{}

// RunCompletedFeed is emitted once per finished localization run, after its estimates are stored.
// Runs that never reach the store (eg. a CLI run without --store) do not emit.
var RunCompletedFeed = event.FeedOf[estimate.RunSummary]{}
