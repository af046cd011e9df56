package activation

import (
	"context"

	"github.com/kbukum/segmentation/bq"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/provider"
	"github.com/kbukum/segmentation/resilience"
)

// ActivateRequest announces a flattened predictions table.
type ActivateRequest struct {
	// ProjectID owns Topic when it is a bare Pub/Sub topic id.
	ProjectID      string
	Topic          string
	ActivationType string
	Table          bq.TableRef
}

// Message builds the payload for r.
func (r ActivateRequest) Message() Message {
	return Message{ActivationType: r.ActivationType, PredictionsTable: r.Table.String()}
}

// NewActivator returns the activation operation: it validates the request,
// turns it into a Publication and publishes it through pub with retries.
// The message key is the table path so repeated activations of one table
// land on the same partition.
func NewActivator(pub Publisher, retry resilience.RetryConfig) provider.RequestResponse[ActivateRequest, Receipt] {
	inner := provider.Chain(
		provider.WithRetry[Publication, Receipt](retry),
	)(pub)
	return provider.AdaptInput(inner, "send_pubsub_activation_msg",
		func(_ context.Context, req ActivateRequest) (Publication, error) {
			if req.Topic == "" {
				return Publication{}, errors.MissingField("topic_name")
			}
			msg := req.Message()
			if err := msg.Validate(); err != nil {
				return Publication{}, err
			}
			return Publication{
				ProjectID: req.ProjectID,
				Topic:     req.Topic,
				Key:       msg.PredictionsTable,
				Message:   msg,
			}, nil
		},
	)
}
