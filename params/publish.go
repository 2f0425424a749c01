package params

import "time"

// InfluxDBConfig is the estimate metrics export target.
// An empty URL disables the export.
type InfluxDBConfig struct {
	URL         string `mapstructure:"url" yaml:"url"`
	Token       string `mapstructure:"token" yaml:"token"`
	Org         string `mapstructure:"org" yaml:"org"`
	Bucket      string `mapstructure:"bucket" yaml:"bucket"`
	Measurement string `mapstructure:"measurement" yaml:"measurement"`
}

func DefaultInfluxDBConfig() *InfluxDBConfig {
	return &InfluxDBConfig{
		Org:         "aploc",
		Bucket:      "aploc",
		Measurement: "ap_estimate",
	}
}

// MQTTConfig is the estimate publisher target.
// An empty Broker disables publishing.
type MQTTConfig struct {
	Broker      string        `mapstructure:"broker" yaml:"broker"`
	ClientID    string        `mapstructure:"client_id" yaml:"client_id"`
	Username    string        `mapstructure:"username" yaml:"username"`
	Password    string        `mapstructure:"password" yaml:"password"`
	TopicPrefix string        `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	QoS         byte          `mapstructure:"qos" yaml:"qos"`
	Retain      bool          `mapstructure:"retain" yaml:"retain"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

func DefaultMQTTConfig() *MQTTConfig {
	return &MQTTConfig{
		ClientID:    "aploc",
		TopicPrefix: "aploc/ap",
		QoS:         1,
		Retain:      true,
		Timeout:     10 * time.Second,
	}
}
