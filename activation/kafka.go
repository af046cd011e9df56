package activation

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/kbukum/segmentation/component"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/observability"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`

	// TLS
	EnableTLS     bool   `yaml:"enable_tls" mapstructure:"enable_tls"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify" mapstructure:"tls_skip_verify"`
	TLSCAFile     string `yaml:"tls_ca_file" mapstructure:"tls_ca_file"`
	TLSCertFile   string `yaml:"tls_cert_file" mapstructure:"tls_cert_file"`
	TLSKeyFile    string `yaml:"tls_key_file" mapstructure:"tls_key_file"`

	// SASL
	EnableSASL    bool   `yaml:"enable_sasl" mapstructure:"enable_sasl"`
	SASLMechanism string `yaml:"sasl_mechanism" mapstructure:"sasl_mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string `yaml:"username" mapstructure:"username"`
	Password      string `yaml:"password" mapstructure:"password"`

	Compression  string        `yaml:"compression" mapstructure:"compression"` // none, gzip, snappy, lz4, zstd
	RequiredAcks int           `yaml:"required_acks" mapstructure:"required_acks"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MetadataTTL  time.Duration `yaml:"metadata_ttl" mapstructure:"metadata_ttl"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *KafkaConfig) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1 // all replicas
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.MetadataTTL <= 0 {
		c.MetadataTTL = 6 * time.Second
	}
	if c.SASLMechanism == "" && c.EnableSASL {
		c.SASLMechanism = "PLAIN"
	}
}

// Validate checks that required fields are present.
func (c *KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.MissingField("activation.kafka.brokers")
	}
	if c.EnableSASL {
		switch c.SASLMechanism {
		case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			return errors.InvalidInput("activation.kafka.sasl_mechanism", "unsupported SASL mechanism "+c.SASLMechanism)
		}
		if c.Username == "" {
			return errors.MissingField("activation.kafka.username")
		}
	}
	switch c.RequiredAcks {
	case -1, 1:
	default:
		return errors.InvalidInput("activation.kafka.required_acks", "must be -1 (all) or 1 (leader)")
	}
	return nil
}

// messageWriter is the part of kafka-go's Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher publishes activation messages to Kafka topics.
type KafkaPublisher struct {
	cfg KafkaConfig
	log *logger.Logger

	mu     sync.RWMutex
	writer messageWriter
}

var (
	_ Publisher             = (*KafkaPublisher)(nil)
	_ component.Describable = (*KafkaPublisher)(nil)
)

// NewKafkaPublisher validates cfg and creates a publisher. The writer is
// created on Start.
func NewKafkaPublisher(cfg KafkaConfig, log *logger.Logger) (*KafkaPublisher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &KafkaPublisher{cfg: cfg, log: log.WithComponent("activation.kafka")}, nil
}

func (p *KafkaPublisher) Name() string { return TransportKafka }

func (p *KafkaPublisher) IsAvailable(_ context.Context) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.writer != nil
}

// Start builds the writer and its transport.
func (p *KafkaPublisher) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		return nil
	}

	transport, err := CreateTransport(&p.cfg)
	if err != nil {
		return fmt.Errorf("kafka publisher transport: %w", err)
	}
	p.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(p.cfg.Brokers...),
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequiredAcks(p.cfg.RequiredAcks),
		Compression:  ResolveCompression(p.cfg.Compression),
		WriteTimeout: p.cfg.WriteTimeout,
		// One activation message per run; do not wait to fill a batch.
		BatchSize: 1,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			p.log.Error("writer: "+fmt.Sprintf(msg, args...))
		}),
	}
	p.log.Info("Kafka publisher started", logger.Fields(
		"brokers", p.cfg.Brokers,
		"compression", p.cfg.Compression,
	))
	return nil
}

// Stop closes the writer, flushing pending messages.
func (p *KafkaPublisher) Stop(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}

// Health reports whether the writer is open.
func (p *KafkaPublisher) Health(ctx context.Context) component.Health {
	if !p.IsAvailable(ctx) {
		return component.Health{Name: p.Name(), Status: component.StatusUnhealthy, Message: "writer not started"}
	}
	return component.Health{Name: p.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (p *KafkaPublisher) Describe() component.Description {
	return component.Description{
		Name:    "Kafka",
		Type:    "publisher",
		Details: "brokers=" + strings.Join(p.cfg.Brokers, ","),
	}
}

// Execute writes one message. The message id is generated and carried in
// the "message_id" header since Kafka assigns none on write.
func (p *KafkaPublisher) Execute(ctx context.Context, pub Publication) (Receipt, error) {
	if pub.Topic == "" || strings.ContainsAny(pub.Topic, "/ ") {
		return Receipt{}, errors.InvalidFormat("topic_name", "a Kafka topic name")
	}
	data, err := pub.Message.Encode()
	if err != nil {
		return Receipt{}, err
	}

	p.mu.RLock()
	w := p.writer
	p.mu.RUnlock()
	if w == nil {
		return Receipt{}, errors.ServiceUnavailable("kafka")
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanPublish)
	defer span.End()

	id := uuid.NewString()
	msg := kafkago.Message{
		Topic: pub.Topic,
		Key:   []byte(pub.Key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "message_id", Value: []byte(id)},
			{Key: "activation_type", Value: []byte(pub.Message.ActivationType)},
		},
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		observability.SetSpanError(ctx, err)
		return Receipt{}, classifyKafka(pub.Topic, err)
	}

	p.log.Info("activation message published", logger.Fields(
		"topic", pub.Topic,
		"message_id", id,
		"predictions_table", pub.Message.PredictionsTable,
	))
	return Receipt{Transport: TransportKafka, Topic: pub.Topic, MessageID: id, PublishedAt: now()}, nil
}

// classifyKafka marks the publish failure retryable only for broker errors
// kafka-go reports as temporary and for connection-level failures.
func classifyKafka(topic string, err error) error {
	appErr := errors.PublishFailed(topic, err)
	var kerr kafkago.Error
	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		appErr.Retryable = false
	case stderrors.As(err, &kerr):
		appErr.Retryable = kerr.Temporary()
	case IsNonRetryableError(err):
		appErr.Retryable = false
	default:
		appErr.Retryable = IsRetryableError(err)
	}
	return appErr
}

// CreateTransport builds a kafka.Transport with optional TLS/SASL.
func CreateTransport(cfg *KafkaConfig) (*kafkago.Transport, error) {
	transport := &kafkago.Transport{
		IdleTimeout: cfg.IdleTimeout,
		MetadataTTL: cfg.MetadataTTL,
	}
	if cfg.EnableTLS {
		tc, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("TLS config: %w", err)
		}
		transport.TLS = tc
	}
	if cfg.EnableSASL {
		m, err := buildSASLMechanism(cfg)
		if err != nil {
			return nil, fmt.Errorf("SASL config: %w", err)
		}
		transport.SASL = m
	}
	return transport, nil
}

func buildTLSConfig(cfg *KafkaConfig) (*tls.Config, error) {
	tc := &tls.Config{
		InsecureSkipVerify: cfg.TLSSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.TLSCAFile != "" {
		caCert, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA certificate")
		}
		tc.RootCAs = pool
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

func buildSASLMechanism(cfg *KafkaConfig) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.SASLMechanism)
	}
}

// ResolveCompression maps a compression name to a kafka-go codec.
func ResolveCompression(name string) kafkago.Compression {
	switch name {
	case "gzip":
		return kafkago.Gzip
	case "lz4":
		return kafkago.Lz4
	case "zstd":
		return kafkago.Zstd
	case "none":
		return 0
	default:
		return kafkago.Snappy
	}
}

// IsConnectionError checks if a Kafka error is a connection-level error.
func IsConnectionError(err error) bool {
	return containsAny(err, []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"broker not available",
		"leader not available",
		"connection closed",
		"dial tcp",
	})
}

// IsRetryableError determines if a Kafka error should trigger a retry.
func IsRetryableError(err error) bool {
	if IsConnectionError(err) {
		return true
	}
	return containsAny(err, []string{
		"temporary",
		"request timed out",
		"not enough replicas",
	})
}

// IsNonRetryableError checks if the error should not be retried.
func IsNonRetryableError(err error) bool {
	return containsAny(err, []string{
		"message too large",
		"invalid topic",
		"unknown topic",
		"authorization failed",
		"sasl authentication failed",
	})
}

func containsAny(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
