package webd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rotblauer/aploc/catz"
	"github.com/rotblauer/aploc/conceptual"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/estimate"
	"github.com/rotblauer/aploc/types/observation"
)

const (
	cacheKeyAPs     = "aps"
	cacheKeyGeoJSON = "aps.geojson"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time               `json:"started_at"`
	Uptime    string                  `json:"uptime"`
	Config    *params.WebDaemonConfig `json:"config"`
	Estimates int                     `json:"estimates"`
	LastRun   *estimate.RunSummary    `json:"last_run,omitempty"`
	WSOpen    bool                    `json:"ws_open"`
	WSConns   int                     `json:"ws_conns"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Count()
	if err != nil {
		s.logger.Error("Failed to count estimates", "error", err)
	}
	last, err := s.store.LastRun()
	if err != nil {
		s.logger.Error("Failed to read last run", "error", err)
	}
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Config:    s.Config,
		Estimates: n,
		LastRun:   last,
		WSOpen:    !s.melodyInstance.IsClosed(),
		WSConns:   s.melodyInstance.Len(),
	}
	s.writeJSON(w, st)
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, v any) {
	j, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	s.writeBytes(w, j)
}

func (s *WebDaemon) writeBytes(w http.ResponseWriter, b []byte) {
	if _, err := w.Write(b); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// cachedEstimates returns every stored estimate, from the response cache when fresh.
func (s *WebDaemon) cachedEstimates() (estimate.Positions, error) {
	if item := s.responses.Get(cacheKeyAPs); item != nil {
		var ps estimate.Positions
		if err := json.Unmarshal(item.Value(), &ps); err == nil {
			return ps, nil
		}
	}
	ps, err := s.store.Estimates()
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = estimate.Positions{}
	}
	if b, err := json.Marshal(ps); err == nil {
		s.responses.Set(cacheKeyAPs, b, ttlcache.DefaultTTL)
	}
	return ps, nil
}

// minConfidence reads ?min_confidence=; a missing value is 0.
func minConfidence(r *http.Request) (float64, error) {
	q := r.URL.Query().Get("min_confidence")
	if q == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(q, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, errors.New("min_confidence must be a number in [0, 1]")
	}
	return v, nil
}

func (s *WebDaemon) handleListAPs(w http.ResponseWriter, r *http.Request) {
	minConf, err := minConfidence(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ps, err := s.cachedEstimates()
	if err != nil {
		s.logger.Error("Failed to read estimates", "error", err)
		http.Error(w, "Failed to read estimates", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, ps.MinConfidence(minConf))
}

func (s *WebDaemon) handleAPsGeoJSON(w http.ResponseWriter, r *http.Request) {
	minConf, err := minConfidence(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if minConf == 0 {
		if item := s.responses.Get(cacheKeyGeoJSON); item != nil {
			s.writeBytes(w, item.Value())
			return
		}
	}
	ps, err := s.cachedEstimates()
	if err != nil {
		s.logger.Error("Failed to read estimates", "error", err)
		http.Error(w, "Failed to read estimates", http.StatusInternalServerError)
		return
	}
	b, err := estimate.ToFeatureCollection(ps.MinConfidence(minConf), false).MarshalJSON()
	if err != nil {
		s.logger.Error("Failed to marshal feature collection", "error", err)
		http.Error(w, "Failed to marshal feature collection", http.StatusInternalServerError)
		return
	}
	if minConf == 0 {
		s.responses.Set(cacheKeyGeoJSON, b, ttlcache.DefaultTTL)
	}
	s.writeBytes(w, b)
}

func (s *WebDaemon) handleGetAP(w http.ResponseWriter, r *http.Request) {
	bssid := conceptual.NewBSSID(mux.Vars(r)["bssid"])
	if bssid.IsEmpty() {
		http.Error(w, "Missing bssid", http.StatusBadRequest)
		return
	}
	p, ok, err := s.store.Estimate(bssid)
	if err != nil {
		s.logger.Error("Failed to read estimate", "bssid", bssid, "error", err)
		http.Error(w, "Failed to read estimate", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no estimate for "+bssid.String(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, p)
}

type localizeResponse struct {
	Run       estimate.RunSummary `json:"run"`
	Estimates estimate.Positions  `json:"estimates"`
}

// handleLocalize runs the pipeline on a posted capture (NDJSON, optionally gzipped),
// stores the results, and responds with them.
func (s *WebDaemon) handleLocalize(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		http.Error(w, "Please send a request body", http.StatusBadRequest)
		return
	}
	body := http.MaxBytesReader(w, r.Body, s.Config.MaxBodyBytes)
	defer body.Close()

	rc, err := catz.MaybeGZReader(body)
	if err != nil {
		http.Error(w, "Failed to read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer rc.Close()

	ctx := r.Context()
	batch, err := observation.Read(ctx, rc)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Warn("Failed to decode capture", "error", err)
		http.Error(w, "Failed to decode capture: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if len(batch.Observations) == 0 {
		http.Error(w, "No valid observations", http.StatusUnprocessableEntity)
		return
	}

	run, err := s.localizer.LocalizeBatch(ctx, batch)
	if err != nil {
		s.logger.Error("Failed to localize", "error", err)
		http.Error(w, "Failed to localize", http.StatusInternalServerError)
		return
	}
	if err := s.store.PutEstimates(run.Estimates); err != nil {
		s.logger.Error("Failed to store estimates", "error", err)
		http.Error(w, "Failed to store estimates", http.StatusInternalServerError)
		return
	}
	if err := s.store.PutRun(run.Summary); err != nil {
		s.logger.Error("Failed to store run", "error", err)
	}
	s.responses.DeleteAll()

	s.logger.Info("Localized posted capture",
		"observations", humanize.Comma(int64(run.Summary.Observations)),
		"estimates", run.Summary.Estimates)
	s.writeJSON(w, localizeResponse{Run: run.Summary, Estimates: run.Estimates})
}
