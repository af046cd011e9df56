package activation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kbukum/segmentation/component"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/observability"
	"github.com/kbukum/segmentation/version"
)

// PubSubConfig configures the Google Pub/Sub publisher.
type PubSubConfig struct {
	// ProjectID is the client project and the default topic project.
	ProjectID string `yaml:"project_id" mapstructure:"project_id"`
	// CredentialsFile is a service account key; empty uses application default credentials.
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	// Endpoint overrides the API endpoint, for the emulator.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// PublishTimeout bounds one publish including the server acknowledgement.
	PublishTimeout time.Duration `yaml:"publish_timeout" mapstructure:"publish_timeout"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *PubSubConfig) ApplyDefaults() {
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 30 * time.Second
	}
}

// PubSubPublisher publishes activation messages to Google Pub/Sub topics.
type PubSubPublisher struct {
	cfg PubSubConfig
	log *logger.Logger

	mu     sync.Mutex
	client *pubsub.Client
	topics map[string]*pubsub.Topic
}

var (
	_ Publisher             = (*PubSubPublisher)(nil)
	_ component.Describable = (*PubSubPublisher)(nil)
)

// NewPubSubPublisher creates a publisher. No connection is made until Start.
func NewPubSubPublisher(cfg PubSubConfig, log *logger.Logger) *PubSubPublisher {
	cfg.ApplyDefaults()
	return &PubSubPublisher{
		cfg:    cfg,
		log:    log.WithComponent("activation.pubsub"),
		topics: make(map[string]*pubsub.Topic),
	}
}

func (p *PubSubPublisher) Name() string { return TransportPubSub }

func (p *PubSubPublisher) IsAvailable(_ context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil
}

// Start opens the Pub/Sub client.
func (p *PubSubPublisher) Start(ctx context.Context) error {
	if p.cfg.ProjectID == "" {
		return errors.MissingField("activation.pubsub.project_id")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return nil
	}

	opts := []option.ClientOption{option.WithUserAgent(version.UserAgent())}
	if p.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(p.cfg.CredentialsFile))
	}
	if p.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.cfg.Endpoint))
	}
	client, err := pubsub.NewClient(ctx, p.cfg.ProjectID, opts...)
	if err != nil {
		return errors.ServiceUnavailable("pubsub").WithCause(err)
	}
	p.client = client
	p.log.Info("Pub/Sub publisher started", logger.Fields("project", p.cfg.ProjectID))
	return nil
}

// Stop flushes pending messages on every topic and closes the client.
func (p *PubSubPublisher) Stop(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, t := range p.topics {
		t.Stop()
		delete(p.topics, name)
	}
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

// Health reports whether the client is open.
func (p *PubSubPublisher) Health(ctx context.Context) component.Health {
	if !p.IsAvailable(ctx) {
		return component.Health{Name: p.Name(), Status: component.StatusUnhealthy, Message: "client not started"}
	}
	return component.Health{Name: p.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (p *PubSubPublisher) Describe() component.Description {
	return component.Description{Name: "Pub/Sub", Type: "publisher", Details: "project=" + p.cfg.ProjectID}
}

// Execute publishes one message and waits for the server acknowledgement.
func (p *PubSubPublisher) Execute(ctx context.Context, pub Publication) (Receipt, error) {
	project, topicID, err := TopicPath(pub.Topic, pub.ProjectID, p.cfg.ProjectID)
	if err != nil {
		return Receipt{}, err
	}
	data, err := pub.Message.Encode()
	if err != nil {
		return Receipt{}, err
	}
	topic, err := p.topic(project, topicID)
	if err != nil {
		return Receipt{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, observability.SpanPublish)
	defer span.End()

	fullName := "projects/" + project + "/topics/" + topicID
	id, err := topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"activation_type": pub.Message.ActivationType},
	}).Get(ctx)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return Receipt{}, classifyPubSub(fullName, err)
	}

	p.log.Info("activation message published", logger.Fields(
		"topic", fullName,
		"message_id", id,
		"predictions_table", pub.Message.PredictionsTable,
	))
	return Receipt{Transport: TransportPubSub, Topic: fullName, MessageID: id, PublishedAt: now()}, nil
}

func (p *PubSubPublisher) topic(project, id string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil, errors.ServiceUnavailable("pubsub")
	}
	key := project + "/" + id
	if t, ok := p.topics[key]; ok {
		return t, nil
	}
	t := p.client.TopicInProject(id, project)
	p.topics[key] = t
	return t, nil
}

// TopicPath resolves a topic given as "projects/<p>/topics/<t>" or as a bare
// id. A bare id belongs to the first non-empty fallback project.
func TopicPath(topic string, fallbacks ...string) (project, id string, err error) {
	if rest, ok := strings.CutPrefix(topic, "projects/"); ok {
		p, t, found := strings.Cut(rest, "/topics/")
		if !found || p == "" || t == "" || strings.Contains(t, "/") {
			return "", "", errors.InvalidFormat("topic_name", "projects/<project>/topics/<topic>")
		}
		return p, t, nil
	}
	if topic == "" || strings.Contains(topic, "/") {
		return "", "", errors.InvalidFormat("topic_name", "<topic> or projects/<project>/topics/<topic>")
	}
	for _, fb := range fallbacks {
		if fb != "" {
			return fb, topic, nil
		}
	}
	return "", "", errors.InvalidInput("topic_name", fmt.Sprintf("topic %q has no project", topic))
}

// classifyPubSub keeps configuration errors terminal and lets transient
// failures be retried.
func classifyPubSub(topic string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return errors.NotFound("topic", topic).WithCause(err)
	case codes.PermissionDenied, codes.InvalidArgument, codes.Unauthenticated:
		appErr := errors.PublishFailed(topic, err)
		appErr.Retryable = false
		return appErr
	}
	return errors.PublishFailed(topic, err)
}
