// Package publish sends localization results to an MQTT broker.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/estimate"
)

var ErrNotConnected = errors.New("mqtt client not connected")

// SummaryTopic is the topic suffix for run summaries.
const SummaryTopic = "summary"

// NewClient connects to cfg.Broker, waiting at most cfg.Timeout.
func NewClient(cfg *params.MQTTConfig) (mqtt.Client, error) {
	if cfg == nil || cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt.broker is required")
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	if err := wait(client.Connect(), cfg.Timeout); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	slog.Info("Connected to MQTT broker", "broker", cfg.Broker, "client_id", cfg.ClientID)
	return client, nil
}

func wait(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out after %v", timeout)
	}
	return token.Error()
}

// Publisher publishes estimates to <prefix>/<bssid> (colons stripped)
// and run summaries to <prefix>/summary.
type Publisher struct {
	client mqtt.Client
	cfg    *params.MQTTConfig
	logger *slog.Logger
}

func NewPublisher(client mqtt.Client, cfg *params.MQTTConfig) *Publisher {
	if cfg == nil {
		cfg = params.DefaultMQTTConfig()
	}
	return &Publisher{
		client: client,
		cfg:    cfg,
		logger: slog.With("component", "mqtt", "prefix", cfg.TopicPrefix),
	}
}

// EstimateTopic is the topic an estimate is published to.
func (p *Publisher) EstimateTopic(pos estimate.Position) string {
	return fmt.Sprintf("%s/%s", p.cfg.TopicPrefix, pos.BSSID.TopicSafe())
}

func (p *Publisher) publish(topic string, v any) error {
	if p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", topic, err)
	}
	if err := wait(p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload), p.cfg.Timeout); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// PublishEstimates publishes every estimate, continuing past failures.
// The errors are returned joined.
func (p *Publisher) PublishEstimates(ps []estimate.Position) error {
	var errs []error
	for _, pos := range ps {
		if err := p.publish(p.EstimateTopic(pos), pos); err != nil {
			if errors.Is(err, ErrNotConnected) {
				return err
			}
			errs = append(errs, err)
		}
	}
	p.logger.Debug("Published estimates", "count", len(ps)-len(errs), "failed", len(errs))
	return errors.Join(errs...)
}

func (p *Publisher) PublishSummary(sum estimate.RunSummary) error {
	return p.publish(fmt.Sprintf("%s/%s", p.cfg.TopicPrefix, SummaryTopic), sum)
}

// Close disconnects the client, waiting up to 250ms for in-flight work.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
