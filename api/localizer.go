package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/aploc/conceptual"
	"github.com/rotblauer/aploc/geo/cleaner"
	"github.com/rotblauer/aploc/geo/locate"
	"github.com/rotblauer/aploc/geo/pathloss"
	"github.com/rotblauer/aploc/geo/smooth"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/stream"
	"github.com/rotblauer/aploc/types/estimate"
	"github.com/rotblauer/aploc/types/observation"
	"golang.org/x/sync/errgroup"
)

// Localizer runs the localization pipeline under one fixed configuration.
// A Localizer is safe for concurrent use; each call to Run is independent.
type Localizer struct {
	cfg     *params.LocalizationConfig
	model   pathloss.Model
	workers int
	logger  *slog.Logger

	// estimates is fed every fused estimate of every run, in BSSID order.
	estimates event.FeedOf[estimate.Position]
}

// Run is the outcome of one localization run.
type Run struct {
	Estimates estimate.Positions
	Summary   estimate.RunSummary
}

// NewLocalizer validates cfg and returns a Localizer that uses a private copy of it.
// Configuration errors are returned joined; see params.ConfigError.
func NewLocalizer(cfg *params.LocalizationConfig) (*Localizer, error) {
	if cfg == nil {
		cfg = params.DefaultLocalizationConfig()
	}
	cfg = cfg.Copy()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return &Localizer{
		cfg:     cfg,
		model:   pathloss.NewModel(cfg),
		workers: workers,
		logger:  slog.With("component", "localizer"),
	}, nil
}

// Config returns the (normalized) configuration. Callers must not modify it.
func (l *Localizer) Config() *params.LocalizationConfig {
	return l.cfg
}

// SubscribeEstimates registers ch to receive every estimate produced by this Localizer.
// Runs block until subscribers have received, so ch should be buffered or drained.
func (l *Localizer) SubscribeEstimates(ch chan<- estimate.Position) event.Subscription {
	return l.estimates.Subscribe(ch)
}

// Localize estimates a position for every BSSID in obs, sorted by BSSID.
// When track is empty the observation positions are used as the track.
func (l *Localizer) Localize(ctx context.Context, track observation.TrackPoints, obs observation.Observations) (estimate.Positions, error) {
	run, err := l.Run(ctx, track, obs)
	if err != nil {
		return nil, err
	}
	return run.Estimates, nil
}

// LocalizeBatch runs a batch as read by observation.Read.
func (l *Localizer) LocalizeBatch(ctx context.Context, b *observation.Batch) (*Run, error) {
	run, err := l.Run(ctx, b.Track, b.Observations)
	if err != nil {
		return nil, err
	}
	run.Summary.Skipped += b.Skipped
	return run, nil
}

// group is one BSSID's outlier-filtered observations.
type group struct {
	bssid    conceptual.BSSID
	kept     []observation.Cleaned
	fallback bool
}

// Run executes the pipeline.
//
// Track smoothing, relocation and outlier filtering happen once for the whole
// input. Estimation then fans out per BSSID on at most cfg.Workers goroutines.
// A group that fails, or panics, is logged and left out of the result.
func (l *Localizer) Run(ctx context.Context, track observation.TrackPoints, obs observation.Observations) (*Run, error) {
	started := time.Now()
	summary := estimate.RunSummary{
		ID:           estimate.RunID(started),
		Started:      started,
		Observations: len(obs),
	}

	valid := make(observation.Observations, 0, len(obs))
	for _, o := range obs {
		if err := o.Validate(); err != nil {
			l.logger.Warn("Skipping invalid observation", "bssid", o.BSSID, "error", err)
			summary.Skipped++
			continue
		}
		valid = append(valid, o)
	}
	sort.Stable(valid)

	cleaned, trackPoints, err := l.relocate(ctx, track, valid)
	if err != nil {
		return nil, err
	}
	summary.TrackPoints = trackPoints

	groups := l.groups(cleaned)
	summary.Groups = len(groups)
	for _, g := range groups {
		summary.Outliers += g.dropped
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slots := make([]*estimate.Position, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.workers)
	for i := range groups {
		if egCtx.Err() != nil {
			break
		}
		i := i
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			slots[i] = l.locateGroup(groups[i].group)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(estimate.Positions, 0, len(slots))
	for _, p := range slots {
		if p == nil {
			summary.Failed++
			continue
		}
		out = append(out, *p)
	}
	// Groups are built in BSSID order already; sort anyway so callers can rely on it.
	sort.Sort(out)

	for _, p := range out {
		l.estimates.Send(p)
	}

	summary.Finished = time.Now()
	summary.Tally(out)
	l.logger.Info("Localized access points",
		"run", summary.ID,
		"observations", summary.Observations,
		"groups", summary.Groups,
		"estimates", summary.Estimates,
		"failed", summary.Failed,
		"outliers", summary.Outliers,
		"elapsed", summary.Duration().Round(time.Millisecond))
	return &Run{Estimates: out, Summary: summary}, nil
}

// relocate places each valid observation on the smoothed GPS track and
// returns the cleaned observations with the number of track points used.
//
// With smoothing disabled every observation keeps its own coordinates.
// Without a GPS track the observations' positions are smoothed as the track,
// one fix per observation, so each takes its own smoothed point.
// Otherwise each observation takes the track position at its timestamp.
func (l *Localizer) relocate(ctx context.Context, track observation.TrackPoints, valid observation.Observations) ([]observation.Cleaned, int, error) {
	if !l.cfg.KalmanEnable {
		return smooth.Relocate(nil, valid), len(track), nil
	}
	if len(track) == 0 {
		return l.relocateOnOwnTrack(ctx, valid)
	}

	cp := make(observation.TrackPoints, 0, len(track))
	for _, tp := range track {
		if err := tp.Validate(); err != nil {
			l.logger.Warn("Skipping invalid track point", "time", tp.Time, "error", err)
			continue
		}
		cp = append(cp, tp)
	}
	sort.Stable(cp)

	filtered, err := l.filterTrack(ctx, cp)
	if err != nil {
		return nil, 0, err
	}
	smoothed := l.smoothTrack(filtered)
	return smooth.Relocate(smoothed, valid), len(smoothed), nil
}

func (l *Localizer) relocateOnOwnTrack(ctx context.Context, valid observation.Observations) ([]observation.Cleaned, int, error) {
	own := valid.Track()
	kept, err := l.filterTrack(ctx, own)
	if err != nil {
		return nil, 0, err
	}
	smoothed := l.smoothTrack(kept)

	// kept is an ordered subsequence of own.
	out := make([]observation.Cleaned, len(valid))
	j := 0
	for i, o := range valid {
		if j < len(kept) && sameFix(kept[j], own[i]) {
			o = o.WithPoint(smoothed[j].Point())
			j++
		} else if p, ok := smooth.At(smoothed, o.Time); ok {
			o = o.WithPoint(p)
		}
		out[i] = observation.Cleaned{Observation: o}
	}
	return out, len(smoothed), nil
}

func sameFix(a, b observation.TrackPoint) bool {
	return a.Time.Equal(b.Time) && a.Lat == b.Lat && a.Lon == b.Lon
}

// filterTrack drops teleporting fixes.
func (l *Localizer) filterTrack(ctx context.Context, track observation.TrackPoints) (observation.TrackPoints, error) {
	filtered := stream.Collect(ctx, cleaner.TeleportationFilter(ctx, l.cfg.TrackMaxSpeed, stream.Slice(ctx, track)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dropped := len(track) - len(filtered); dropped > 0 {
		l.logger.Debug("Dropped teleporting track points", "dropped", dropped, "kept", len(filtered))
	}
	return filtered, nil
}

// smoothTrack falls back to the unsmoothed track when the filter fails.
func (l *Localizer) smoothTrack(track observation.TrackPoints) observation.TrackPoints {
	smoothed, err := smooth.Track(l.cfg, track)
	if err != nil {
		l.logger.Warn("Track smoothing failed, using raw track", "error", err)
	}
	return smoothed
}

type filteredGroup struct {
	group
	dropped int
}

// groups partitions relocated observations by BSSID, in BSSID order,
// and removes spatial outliers from each.
func (l *Localizer) groups(cleaned []observation.Cleaned) []filteredGroup {
	byBSSID := make(map[conceptual.BSSID][]observation.Cleaned)
	for _, c := range cleaned {
		byBSSID[c.BSSID] = append(byBSSID[c.BSSID], c)
	}
	keys := make([]conceptual.BSSID, 0, len(byBSSID))
	for k := range byBSSID {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]filteredGroup, 0, len(keys))
	for _, k := range keys {
		res := cleaner.DBSCAN(l.cfg, byBSSID[k])
		if len(res.Kept) == 0 {
			continue
		}
		if res.Fallback {
			l.logger.Debug("Outlier filter kept every observation", "bssid", k, "observations", len(res.Kept))
		}
		out = append(out, filteredGroup{
			group:   group{bssid: k, kept: res.Kept, fallback: res.Fallback},
			dropped: res.Dropped,
		})
	}
	return out
}

// locateGroup runs every applicable estimator on one group and fuses the results.
// It returns nil when no estimate can be made.
func (l *Localizer) locateGroup(g group) (pos *estimate.Position) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered panic locating access point", "bssid", g.bssid, "panic", fmt.Sprint(r))
			pos = nil
		}
	}()

	samples := locate.Samples(l.model, g.kept)
	if len(samples) == 0 {
		return nil
	}

	var candidates []estimate.Candidate
	for _, est := range locate.Estimators(l.cfg, len(samples)) {
		c, err := est.Estimate(samples)
		switch {
		case err == nil:
			candidates = append(candidates, c)
		case errors.Is(err, locate.ErrInsufficientData):
			l.logger.Debug("Method abstained", "bssid", g.bssid, "method", est.Method(), "positions", len(samples))
		case errors.Is(err, locate.ErrNumericalInstability):
			l.logger.Warn("Method numerically unstable", "bssid", g.bssid, "method", est.Method(), "error", err)
		default:
			l.logger.Warn("Method failed", "bssid", g.bssid, "method", est.Method(), "error", err)
		}
	}

	p, err := locate.Fuse(l.cfg, candidates, len(g.kept), g.fallback)
	if err != nil {
		l.logger.Warn("No estimate for access point", "bssid", g.bssid, "error", err)
		return nil
	}
	p.BSSID = g.bssid
	estimate.AssignCell(&p)
	return &p
}
