package bq

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/kbukum/segmentation/component"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/observability"
	"github.com/kbukum/segmentation/provider"
	"github.com/kbukum/segmentation/resilience"
	"github.com/kbukum/segmentation/version"
)

// Config configures the BigQuery client.
type Config struct {
	// ProjectID is the billing project for jobs.
	ProjectID string `yaml:"project_id" mapstructure:"project_id"`
	// Location is the default processing location (e.g. "US", "europe-west1").
	Location string `yaml:"location" mapstructure:"location"`
	// CredentialsFile is a service account key; empty uses application default credentials.
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	// Endpoint overrides the API endpoint, for emulators.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// JobTimeout bounds a single job including the wait for completion.
	JobTimeout time.Duration `yaml:"job_timeout" mapstructure:"job_timeout"`
	// Jobs bounds concurrent jobs across all operations.
	Jobs resilience.BulkheadConfig `yaml:"jobs" mapstructure:"jobs"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Minute
	}
	if c.Jobs.Name == "" {
		c.Jobs.Name = "bigquery-jobs"
	}
	if c.Jobs.MaxConcurrent <= 0 {
		c.Jobs.MaxConcurrent = 4
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return errors.MissingField("bigquery.project_id")
	}
	return nil
}

// Client is the Warehouse backed by cloud.google.com/go/bigquery.
// It is a component: Start opens the API client and Stop closes it.
type Client struct {
	cfg  Config
	log  *logger.Logger
	jobs *resilience.Bulkhead
	// exec and evaluate share jobs, which bounds concurrent BigQuery jobs.
	exec     provider.RequestResponse[Job, JobResult]
	evaluate provider.RequestResponse[evaluateCall, Evaluation]

	mu     sync.RWMutex
	client *bigquery.Client
}

var (
	_ Warehouse             = (*Client)(nil)
	_ component.Component   = (*Client)(nil)
	_ component.Describable = (*Client)(nil)
)

// NewClient creates a Client. No connection is made until Start.
func NewClient(cfg Config, log *logger.Logger) *Client {
	cfg.ApplyDefaults()
	c := &Client{
		cfg:  cfg,
		log:  log.WithComponent("bigquery"),
		jobs: resilience.NewBulkhead(cfg.Jobs),
	}
	c.exec = provider.WithBulkhead[Job, JobResult](c.jobs)(provider.Func("bigquery_job", c.runJob))
	c.evaluate = provider.WithBulkhead[evaluateCall, Evaluation](c.jobs)(provider.Func("bigquery_evaluate", c.runEvaluate))
	return c
}

// Name returns the component name.
func (c *Client) Name() string { return "bigquery" }

// Start opens the BigQuery API client.
func (c *Client) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return nil
	}

	opts := []option.ClientOption{option.WithUserAgent(version.UserAgent())}
	if c.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.cfg.CredentialsFile))
	}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.Endpoint))
	}

	client, err := bigquery.NewClient(ctx, c.cfg.ProjectID, opts...)
	if err != nil {
		return errors.ServiceUnavailable("bigquery").WithCause(err)
	}
	client.Location = c.cfg.Location
	c.client = client

	c.log.Info("BigQuery client started", logger.Fields(
		"project", c.cfg.ProjectID,
		"location", c.cfg.Location,
		"max_concurrent_jobs", c.jobs.MaxConcurrent(),
	))
	return nil
}

// Stop closes the API client.
func (c *Client) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// Health reports whether the client is open and how many jobs are running.
func (c *Client) Health(_ context.Context) component.Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "client not started"}
	}
	inUse := c.jobs.InUse()
	if inUse >= c.jobs.MaxConcurrent() {
		return component.Health{Name: c.Name(), Status: component.StatusDegraded,
			Message: fmt.Sprintf("all %d job slots in use", inUse)}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (c *Client) Describe() component.Description {
	return component.Description{
		Name:    "BigQuery",
		Type:    "warehouse",
		Details: fmt.Sprintf("project=%s location=%s jobs=%d", c.cfg.ProjectID, c.cfg.Location, c.jobs.MaxConcurrent()),
	}
}

func (c *Client) api() (*bigquery.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, errors.ServiceUnavailable("bigquery")
	}
	return c.client, nil
}

// Exec runs job and waits for it to finish. A job that cannot get a slot
// within the configured wait is SERVICE_UNAVAILABLE.
func (c *Client) Exec(ctx context.Context, job Job) (JobResult, error) {
	return c.exec.Execute(ctx, job)
}

func (c *Client) runJob(ctx context.Context, job Job) (JobResult, error) {
	api, err := c.api()
	if err != nil {
		return JobResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.JobTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, observability.SpanBigQueryJob)
	defer span.End()

	q := c.query(api, job.SQL, job.ProjectID, job.Location)
	q.Labels = mergeLabels(version.Labels(), job.Labels)

	bqJob, err := q.Run(ctx)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return JobResult{}, classify("bigquery job", err)
	}
	observability.SetSpanAttribute(ctx, observability.AttrJobID, bqJob.ID())

	status, err := bqJob.Wait(ctx)
	if err == nil {
		err = status.Err()
	}
	if err != nil {
		observability.SetSpanError(ctx, err)
		if ctx.Err() != nil {
			return JobResult{}, errors.Timeout("bigquery job " + bqJob.ID()).WithCause(err)
		}
		return JobResult{}, errors.JobFailed(bqJob.ID(), err)
	}

	c.log.Debug("BigQuery job completed", logger.Fields("job_id", bqJob.ID()))
	return JobResult{JobID: bqJob.ID()}, nil
}

// ListModels lists models in projectID.datasetID whose id starts with prefix.
func (c *Client) ListModels(ctx context.Context, projectID, datasetID, prefix string) ([]ModelInfo, error) {
	api, err := c.api()
	if err != nil {
		return nil, err
	}

	var out []ModelInfo
	it := api.DatasetInProject(projectID, datasetID).Models(ctx)
	for {
		m, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify("dataset "+projectID+"."+datasetID, err)
		}
		if !strings.HasPrefix(m.ModelID, prefix) {
			continue
		}
		meta, err := m.Metadata(ctx)
		if err != nil {
			return nil, classify("model "+m.FullyQualifiedName(), err)
		}
		out = append(out, ModelInfo{
			Ref:     ModelRef{ProjectID: m.ProjectID, DatasetID: m.DatasetID, ModelID: m.ModelID},
			Created: meta.CreationTime,
		})
	}
	return out, nil
}

type evaluationRow struct {
	DaviesBouldinIndex  bigquery.NullFloat64 `bigquery:"davies_bouldin_index"`
	MeanSquaredDistance bigquery.NullFloat64 `bigquery:"mean_squared_distance"`
}

// Evaluate runs ML.EVALUATE on model and reads its single row. A metric
// BigQuery reports as NULL is left nil in the Evaluation.
func (c *Client) Evaluate(ctx context.Context, model ModelRef, location string) (Evaluation, error) {
	return c.evaluate.Execute(ctx, evaluateCall{model: model, location: location})
}

type evaluateCall struct {
	model    ModelRef
	location string
}

func (c *Client) runEvaluate(ctx context.Context, call evaluateCall) (Evaluation, error) {
	api, err := c.api()
	if err != nil {
		return Evaluation{}, err
	}
	model := call.model

	ctx, span := observability.StartSpan(ctx, observability.SpanBigQueryJob)
	defer span.End()

	it, err := c.query(api, EvaluateSQL(model), model.ProjectID, call.location).Read(ctx)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return Evaluation{}, classify("evaluate "+model.String(), err)
	}
	var row evaluationRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return Evaluation{}, errors.NotFound("evaluation", model.String())
		}
		return Evaluation{}, classify("evaluate "+model.String(), err)
	}
	if !row.DaviesBouldinIndex.Valid && !row.MeanSquaredDistance.Valid {
		return Evaluation{}, errors.JobFailed("evaluate "+model.String(),
			fmt.Errorf("ML.EVALUATE returned no k-means metrics"))
	}
	return Evaluation{
		Model:               model,
		DaviesBouldinIndex:  nullable(row.DaviesBouldinIndex),
		MeanSquaredDistance: nullable(row.MeanSquaredDistance),
	}, nil
}

func nullable(v bigquery.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func (c *Client) query(api *bigquery.Client, sql, projectID, location string) *bigquery.Query {
	q := api.Query(sql)
	q.DefaultProjectID = projectID
	if location != "" {
		q.Location = location
	}
	return q
}

// classify maps API errors onto AppErrors. Quota and server errors are
// retryable; a missing dataset or model is NOT_FOUND; the rest fail the job.
func classify(what string, err error) error {
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return errors.NotFound("bigquery resource", what).WithCause(err)
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return errors.ServiceUnavailable("bigquery").WithCause(err).WithDetail("target", what)
		}
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Timeout(what).WithCause(err)
	}
	return errors.JobFailed(what, err)
}

func mergeLabels(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
