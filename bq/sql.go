package bq

import (
	"fmt"
	"strconv"
	"strings"
)

// Column names of a k-means ML.PREDICT result.
const (
	ColumnCentroidID        = "CENTROID_ID"
	ColumnNearestCentroids  = "NEAREST_CENTROIDS_DISTANCE"
	ColumnCentroidDistance  = "CENTROID_DISTANCE"
	flattenedTableSuffix    = "_view"
	vertexModelVersionAlias = "latest"
)

// Accepted k-means options.
var (
	InitMethods   = []string{"RANDOM", "KMEANS++"}
	DistanceTypes = []string{"EUCLIDEAN", "COSINE"}
)

// KMeansOptions are the CREATE MODEL options of a k-means model.
type KMeansOptions struct {
	NumClusters         int
	InitMethod          string
	DistanceType        string
	StandardizeFeatures bool
	MaxIterations       int
	EarlyStop           bool
	MinRelProgress      float64
	WarmStart           bool
}

// CreateModelSQL builds the statement that trains model on source, excluding
// the given columns, and registers it in Vertex AI under vertexModel.
func CreateModelSQL(model ModelRef, vertexModel string, source TableRef, exclude []string, opts KMeansOptions) string {
	options := []string{
		"model_type='KMEANS'",
		"num_clusters=" + strconv.Itoa(opts.NumClusters),
		"kmeans_init_method=" + quoteString(strings.ToUpper(opts.InitMethod)),
		"distance_type=" + quoteString(strings.ToUpper(opts.DistanceType)),
		"standardize_features=" + boolLiteral(opts.StandardizeFeatures),
		"max_iterations=" + strconv.Itoa(opts.MaxIterations),
		"early_stop=" + boolLiteral(opts.EarlyStop),
		"min_rel_progress=" + strconv.FormatFloat(opts.MinRelProgress, 'g', -1, 64),
		"warm_start=" + boolLiteral(opts.WarmStart),
		"model_registry='VERTEX_AI'",
		"vertex_ai_model_id=" + quoteString(vertexModel),
		"vertex_ai_model_version_aliases=[" + quoteString(vertexModelVersionAlias) + "]",
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE OR REPLACE MODEL %s\nOPTIONS(\n  %s\n) AS\n", quoteRef(model.String()), strings.Join(options, ",\n  "))
	b.WriteString(selectStar(exclude))
	fmt.Fprintf(&b, " FROM %s", quoteRef(source.String()))
	return b.String()
}

// EvaluateSQL builds the ML.EVALUATE query of model.
func EvaluateSQL(model ModelRef) string {
	return fmt.Sprintf("SELECT * FROM ML.EVALUATE(MODEL %s)", quoteRef(model.String()))
}

// PredictSQL builds the statement that materializes ML.PREDICT of model over
// source into dest.
func PredictSQL(model ModelRef, source, dest TableRef) string {
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS\nSELECT * FROM ML.PREDICT(MODEL %s, TABLE %s)",
		quoteRef(dest.String()), quoteRef(model.String()), quoteRef(source.String()))
}

// FlattenSQL builds the view over a prediction table that replaces the
// nested NEAREST_CENTROIDS_DISTANCE array with the scalar distance to the
// assigned centroid.
func FlattenSQL(source, dest TableRef) string {
	return fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS
SELECT
  p.* EXCEPT(%s),
  (SELECT d.DISTANCE FROM UNNEST(p.%s) AS d WHERE d.%s = p.%s) AS %s
FROM %s AS p`,
		quoteRef(dest.String()),
		ColumnNearestCentroids,
		ColumnNearestCentroids, ColumnCentroidID, ColumnCentroidID, ColumnCentroidDistance,
		quoteRef(source.String()))
}

// FlattenedTable returns the view a prediction table is flattened into.
func FlattenedTable(source TableRef) TableRef {
	dest := source
	dest.TableID += flattenedTableSuffix
	return dest
}

func selectStar(exclude []string) string {
	if len(exclude) == 0 {
		return "SELECT *"
	}
	cols := make([]string, len(exclude))
	for i, c := range exclude {
		cols[i] = "`" + c + "`"
	}
	return "SELECT * EXCEPT(" + strings.Join(cols, ", ") + ")"
}

func quoteRef(path string) string { return "`" + path + "`" }

func quoteString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

func boolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
