package webd

import (
	"encoding/json"
	"log/slog"

	"github.com/olahol/melody"
	"github.com/rotblauer/aploc/events"
	"github.com/rotblauer/aploc/types/estimate"
)

type websocketAction string

var (
	websocketActionSnapshot websocketAction = "snapshot"
	websocketActionEstimate websocketAction = "estimate"
	websocketActionRun      websocketAction = "run"
)

type broadcast struct {
	Action    websocketAction      `json:"action"`
	Estimates []estimate.Position  `json:"estimates,omitempty"`
	Run       *estimate.RunSummary `json:"run,omitempty"`
}

// initMelody sets up the websocket handler.
// New connections get a snapshot of every stored estimate; afterwards
// every newly stored estimate and every completed run is broadcast.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		s.logger.Debug("Websocket connected", "remote", sess.Request.RemoteAddr)
		ps, err := s.cachedEstimates()
		if err != nil {
			s.logger.Error("Failed to read estimates for snapshot", "error", err)
			return
		}
		b, err := json.Marshal(broadcast{Action: websocketActionSnapshot, Estimates: ps})
		if err != nil {
			s.logger.Error("Failed to marshal snapshot", "error", err)
			return
		}
		_ = sess.Write(b)
	})

	// Right now don't care about incoming messages from clients. Log and drop.
	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "remote", sess.Request.RemoteAddr, "message", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		s.logger.Debug("Websocket disconnected", "remote", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, e error) {
		s.logger.Warn("Websocket error", "remote", sess.Request.RemoteAddr, "error", e)
	})

	stored := make(chan estimate.Position)
	storedSub := events.StoredEstimateFeed.Subscribe(stored)
	runs := make(chan estimate.RunSummary)
	runSub := events.RunCompletedFeed.Subscribe(runs)
	done := make(chan struct{})
	s.stopSocket = func() {
		storedSub.Unsubscribe()
		runSub.Unsubscribe()
		close(done)
	}

	go func() {
		for {
			var bc broadcast
			select {
			case p := <-stored:
				bc = broadcast{Action: websocketActionEstimate, Estimates: []estimate.Position{p}}
			case sum := <-runs:
				bc = broadcast{Action: websocketActionRun, Run: &sum}
			case err := <-storedSub.Err():
				if err != nil {
					slog.Error("Stored estimate subscription failed", "error", err)
				}
				return
			case <-done:
				return
			}
			b, err := json.Marshal(bc)
			if err != nil {
				s.logger.Error("Failed to marshal broadcast", "error", err)
				continue
			}
			if err := s.melodyInstance.Broadcast(b); err != nil {
				s.logger.Warn("Failed to broadcast", "action", bc.Action, "error", err)
			}
		}
	}()
}
