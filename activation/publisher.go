package activation

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/segmentation/component"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/provider"
	"github.com/kbukum/segmentation/resilience"
)

// Transport names.
const (
	TransportPubSub = "pubsub"
	TransportKafka  = "kafka"
)

// Publisher sends publications over one transport. Publishers are
// components: Start connects and Stop flushes and disconnects.
type Publisher interface {
	provider.RequestResponse[Publication, Receipt]
	component.Component
}

// Config selects and configures the activation transport.
type Config struct {
	// Transport is "pubsub" or "kafka".
	Transport string       `yaml:"transport" mapstructure:"transport"`
	PubSub    PubSubConfig `yaml:"pubsub" mapstructure:"pubsub"`
	Kafka     KafkaConfig  `yaml:"kafka" mapstructure:"kafka"`
	// Retry applies to publishing.
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Transport == "" {
		c.Transport = TransportPubSub
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = resilience.DefaultRetryConfig()
	}
	c.PubSub.ApplyDefaults()
	c.Kafka.ApplyDefaults()
}

// NewRegistry returns a registry with the pubsub and kafka factories.
// Factories decode their settings from a generic map, as read from
// configuration.
func NewRegistry(log *logger.Logger) *provider.Registry[Publisher] {
	r := provider.NewRegistry[Publisher]()
	r.RegisterFactory(TransportPubSub, func(raw map[string]any) (Publisher, error) {
		var cfg PubSubConfig
		if err := decode(raw, &cfg); err != nil {
			return nil, err
		}
		return NewPubSubPublisher(cfg, log), nil
	})
	r.RegisterFactory(TransportKafka, func(raw map[string]any) (Publisher, error) {
		var cfg KafkaConfig
		if err := decode(raw, &cfg); err != nil {
			return nil, err
		}
		pub, err := NewKafkaPublisher(cfg, log)
		if err != nil {
			return nil, err
		}
		return pub, nil
	})
	return r
}

// NewPublisher creates the publisher selected by cfg.Transport.
func NewPublisher(cfg Config, log *logger.Logger) (Publisher, error) {
	cfg.ApplyDefaults()

	var settings any
	switch cfg.Transport {
	case TransportPubSub:
		settings = cfg.PubSub
	case TransportKafka:
		settings = cfg.Kafka
	default:
		return nil, fmt.Errorf("activation: unknown transport %q", cfg.Transport)
	}

	raw := map[string]any{}
	if err := mapstructure.Decode(settings, &raw); err != nil {
		return nil, fmt.Errorf("activation: encoding %s settings: %w", cfg.Transport, err)
	}
	pub, err := NewRegistry(log).Create(cfg.Transport, raw)
	if err != nil {
		return nil, fmt.Errorf("activation: %w", err)
	}
	return pub, nil
}

func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("activation: decoding settings: %w", err)
	}
	return nil
}

// now is replaced in tests.
var now = time.Now
