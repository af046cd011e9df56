package bq

import (
	"context"
	"strings"
	"time"

	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/provider"
	"github.com/kbukum/segmentation/validation"
)

// destinationTimeLayout is appended to the destination prefix.
const destinationTimeLayout = "20060102_150405"

// PredictRequest are the inputs of a batch prediction.
type PredictRequest struct {
	Model     ModelRef
	ProjectID string
	Location  string
	// Source is "[project.]dataset.table".
	Source string
	// DestinationPrefix is "[[project.]dataset.]prefix". Missing segments
	// come from the source table.
	DestinationPrefix string
}

// Validate checks formats.
func (r PredictRequest) Validate() error {
	return validation.New().
		Custom(!r.Model.IsZero(), "model", "is required").
		Required("project_id", r.ProjectID).
		Required("bigquery_source", r.Source).
		TableID("bigquery_source", r.Source, 2).
		Required("bigquery_destination_prefix", r.DestinationPrefix).
		TableID("bigquery_destination_prefix", r.DestinationPrefix, 1).
		Err()
}

// Predictor materializes ML.PREDICT of a model over a source table into
// "<prefix><YYYYMMDD_HHMMSS>".
type Predictor struct {
	wh  Warehouse
	now func() time.Time
}

var _ provider.RequestResponse[PredictRequest, TableRef] = (*Predictor)(nil)

// NewPredictor creates a Predictor. A nil clock uses time.Now.
func NewPredictor(wh Warehouse, now func() time.Time) *Predictor {
	if now == nil {
		now = time.Now
	}
	return &Predictor{wh: wh, now: now}
}

func (p *Predictor) Name() string                       { return "bq_clustering_predictions" }
func (p *Predictor) IsAvailable(_ context.Context) bool { return p.wh != nil }

func (p *Predictor) Execute(ctx context.Context, req PredictRequest) (TableRef, error) {
	if err := req.Validate(); err != nil {
		return TableRef{}, err
	}
	source, err := ParseTableRef(req.Source, req.ProjectID)
	if err != nil {
		return TableRef{}, err
	}
	dest, err := DestinationTable(req.DestinationPrefix, source, p.now())
	if err != nil {
		return TableRef{}, err
	}

	_, err = p.wh.Exec(ctx, Job{
		SQL:       PredictSQL(req.Model, source, dest),
		ProjectID: req.ProjectID,
		Location:  req.Location,
		Labels:    map[string]string{"operation": "predict"},
	})
	if err != nil {
		return TableRef{}, asJobError("predict "+dest.String(), err)
	}
	return dest, nil
}

// DestinationTable resolves a destination prefix against the source table
// and appends the UTC timestamp of at.
func DestinationTable(prefix string, source TableRef, at time.Time) (TableRef, error) {
	if !validation.IsTablePath(prefix, 1) {
		return TableRef{}, errors.InvalidFormat("bigquery_destination_prefix", "[[project.]dataset.]prefix")
	}
	dest := TableRef{ProjectID: source.ProjectID, DatasetID: source.DatasetID}
	parts := strings.Split(prefix, ".")
	switch len(parts) {
	case 1:
		dest.TableID = parts[0]
	case 2:
		dest.DatasetID, dest.TableID = parts[0], parts[1]
	case 3:
		dest.ProjectID, dest.DatasetID, dest.TableID = parts[0], parts[1], parts[2]
	}
	dest.TableID += at.UTC().Format(destinationTimeLayout)
	return dest, nil
}
