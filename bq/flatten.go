package bq

import (
	"context"

	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/provider"
)

// FlattenRequest identifies the prediction table to flatten.
type FlattenRequest struct {
	ProjectID string
	Location  string
	Source    TableRef
}

// Flattener creates "<source>_view", which replaces the nested
// NEAREST_CENTROIDS_DISTANCE column with CENTROID_DISTANCE.
type Flattener struct {
	wh Warehouse
}

var _ provider.RequestResponse[FlattenRequest, TableRef] = (*Flattener)(nil)

// NewFlattener creates a Flattener.
func NewFlattener(wh Warehouse) *Flattener { return &Flattener{wh: wh} }

func (f *Flattener) Name() string                       { return "bq_flatten_kmeans_prediction_table" }
func (f *Flattener) IsAvailable(_ context.Context) bool { return f.wh != nil }

func (f *Flattener) Execute(ctx context.Context, req FlattenRequest) (TableRef, error) {
	if req.Source == (TableRef{}) {
		return TableRef{}, errors.MissingField("source_table")
	}
	dest := FlattenedTable(req.Source)
	project := req.ProjectID
	if project == "" {
		project = req.Source.ProjectID
	}
	_, err := f.wh.Exec(ctx, Job{
		SQL:       FlattenSQL(req.Source, dest),
		ProjectID: project,
		Location:  req.Location,
		Labels:    map[string]string{"operation": "flatten"},
	})
	if err != nil {
		return TableRef{}, asJobError("flatten "+dest.String(), err)
	}
	return dest, nil
}
