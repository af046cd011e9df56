package bq

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/validation"
)

// ModelRef identifies a BigQuery ML model.
type ModelRef struct {
	ProjectID string `json:"project_id" yaml:"project_id"`
	DatasetID string `json:"dataset_id" yaml:"dataset_id"`
	ModelID   string `json:"model_id" yaml:"model_id"`
}

// ArtifactType implements dag.Artifact.
func (ModelRef) ArtifactType() dag.ValueType { return dag.TypeModel }

// String renders project.dataset.model.
func (m ModelRef) String() string {
	return m.ProjectID + "." + m.DatasetID + "." + m.ModelID
}

// IsZero reports whether m is unset.
func (m ModelRef) IsZero() bool { return m == ModelRef{} }

// TableRef identifies a BigQuery table or view.
type TableRef struct {
	ProjectID string `json:"project_id" yaml:"project_id"`
	DatasetID string `json:"dataset_id" yaml:"dataset_id"`
	TableID   string `json:"table_id" yaml:"table_id"`
}

// ArtifactType implements dag.Artifact.
func (TableRef) ArtifactType() dag.ValueType { return dag.TypeTable }

// String renders project.dataset.table.
func (t TableRef) String() string {
	return t.ProjectID + "." + t.DatasetID + "." + t.TableID
}

// ParseTableRef parses "[project.]dataset.table". A missing project falls
// back to defaultProject.
func ParseTableRef(s, defaultProject string) (TableRef, error) {
	if !validation.IsTablePath(s, 2) {
		return TableRef{}, errors.InvalidFormat("table", "[project.]dataset.table")
	}
	parts := strings.Split(s, ".")
	if len(parts) == 2 {
		if defaultProject == "" {
			return TableRef{}, errors.InvalidInput("table", fmt.Sprintf("%q has no project and none was given", s))
		}
		return TableRef{ProjectID: defaultProject, DatasetID: parts[0], TableID: parts[1]}, nil
	}
	return TableRef{ProjectID: parts[0], DatasetID: parts[1], TableID: parts[2]}, nil
}

// ParseDataset parses "[project.]dataset" into its project and dataset.
func ParseDataset(s, defaultProject string) (project, dataset string, err error) {
	if !validation.IsDatasetPath(s) {
		return "", "", errors.InvalidFormat("dataset", "[project.]dataset")
	}
	if p, d, ok := strings.Cut(s, "."); ok {
		return p, d, nil
	}
	if defaultProject == "" {
		return "", "", errors.InvalidInput("dataset", fmt.Sprintf("%q has no project and none was given", s))
	}
	return defaultProject, s, nil
}

// Metric names an ML.EVALUATE column used to rank k-means models.
// Both are lower-is-better.
type Metric string

const (
	MetricDaviesBouldinIndex  Metric = "davies_bouldin_index"
	MetricMeanSquaredDistance Metric = "mean_squared_distance"
)

// Metrics lists the supported ranking metrics.
func Metrics() []string {
	return []string{string(MetricDaviesBouldinIndex), string(MetricMeanSquaredDistance)}
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricDaviesBouldinIndex, MetricMeanSquaredDistance:
		return Metric(s), nil
	}
	return "", errors.InvalidInput("metric_name", "must be one of: "+strings.Join(Metrics(), ", "))
}

// Evaluation holds the ML.EVALUATE metrics of a k-means model. A nil
// metric was not reported by BigQuery.
type Evaluation struct {
	Model               ModelRef `json:"model" yaml:"model"`
	DaviesBouldinIndex  *float64 `json:"davies_bouldin_index" yaml:"davies_bouldin_index"`
	MeanSquaredDistance *float64 `json:"mean_squared_distance" yaml:"mean_squared_distance"`
}

// ArtifactType implements dag.Artifact.
func (Evaluation) ArtifactType() dag.ValueType { return dag.TypeMetrics }

// Value returns the named metric. It fails when the metric is unknown or
// was not reported for the model.
func (e Evaluation) Value(m Metric) (float64, error) {
	var v *float64
	switch m {
	case MetricDaviesBouldinIndex:
		v = e.DaviesBouldinIndex
	case MetricMeanSquaredDistance:
		v = e.MeanSquaredDistance
	default:
		return 0, errors.InvalidInput("metric_name", fmt.Sprintf("unknown metric %q", m))
	}
	if v == nil {
		return 0, errors.NotFound("metric", string(m)).WithDetail("model", e.Model.String())
	}
	return *v, nil
}

// ModelInfo is a listed model with its creation time.
type ModelInfo struct {
	Ref     ModelRef
	Created time.Time
}
