package activation

import (
	"encoding/json"
	"time"

	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/validation"
)

// Message is the activation payload.
type Message struct {
	ActivationType   string `json:"activation_type"`
	PredictionsTable string `json:"predictions_table"`
}

// Validate checks that both fields are set and the table is fully qualified.
func (m Message) Validate() error {
	return validation.New().
		Required("activation_type", m.ActivationType).
		Required("predictions_table", m.PredictionsTable).
		TableID("predictions_table", m.PredictionsTable, 3).
		Err()
}

// Encode renders the message as JSON.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return data, nil
}

// Publication is one message bound for a topic.
type Publication struct {
	// ProjectID owns the topic when Topic is a bare id (Pub/Sub only).
	ProjectID string
	Topic     string
	// Key partitions the message (Kafka) or orders it (Pub/Sub ordering keys are not used).
	Key     string
	Message Message
}

// Receipt records a successful publish.
type Receipt struct {
	Transport   string    `json:"transport" yaml:"transport"`
	Topic       string    `json:"topic" yaml:"topic"`
	MessageID   string    `json:"message_id" yaml:"message_id"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
}

// ArtifactType implements dag.Artifact.
func (Receipt) ArtifactType() dag.ValueType { return dag.TypeReceipt }
