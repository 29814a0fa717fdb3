// Package registryclient talks to an upstream npm style registry: full manifests,
// download ranges, and the sync job endpoints of registries that mirror another one.
package registryclient

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/stacklok/toolhive-registry-mirror/internal/httpclient"
	"github.com/stacklok/toolhive-registry-mirror/internal/manifest"
)

//go:embed manifest.schema.json
var manifestSchema []byte

const manifestSchemaURL = "manifest.schema.json"

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client is the upstream registry as seen by the sync engine
type Client interface {
	// Registry is the base URL of the upstream
	Registry() string
	// FetchFullManifest fetches the full document of a package
	FetchFullManifest(ctx context.Context, fullname string) (*ManifestResult, error)
	// FetchDownloadRanges fetches daily download counters between two YYYY-MM-DD days
	FetchDownloadRanges(ctx context.Context, registry, fullname, start, end string) (*DownloadsResult, error)
	// CreateSyncJob asks a mirroring upstream to sync the package from its own source
	CreateSyncJob(ctx context.Context, fullname string) (*SyncJob, error)
	// PollSyncJob reads the log of a sync job from offset
	PollSyncJob(ctx context.Context, fullname, logID string, offset int64) (*SyncLog, error)
}

// ManifestResult is a fetched full manifest
type ManifestResult struct {
	URL           string
	Status        int
	ContentLength int
	Manifest      *manifest.Manifest
}

// DayDownloads is one day of download counters
type DayDownloads struct {
	Day       string `json:"day"`
	Downloads int64  `json:"downloads"`
}

// DownloadsResult is a fetched download range
type DownloadsResult struct {
	URL       string
	Status    int
	Downloads []DayDownloads
}

// SyncJob is the answer to a sync job creation
type SyncJob struct {
	URL    string          `json:"-"`
	Status int             `json:"-"`
	OK     bool            `json:"ok"`
	LogID  string          `json:"logId"`
	Raw    json.RawMessage `json:"-"`
}

// SyncLog is one poll of a sync job log
type SyncLog struct {
	URL      string `json:"-"`
	Status   int    `json:"-"`
	OK       bool   `json:"ok"`
	SyncDone bool   `json:"syncDone"`
	Log      string `json:"log"`
}

// HTTPClient implements Client on top of httpclient.Client
type HTTPClient struct {
	registry string
	http     httpclient.Client
	schema   *jsonschema.Schema
}

// New creates a Client for registry
func New(registry string, client httpclient.Client) (*HTTPClient, error) {
	schema, err := compileManifestSchema()
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		registry: strings.TrimRight(registry, "/"),
		http:     client,
		schema:   schema,
	}, nil
}

func compileManifestSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(manifestSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(manifestSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add manifest schema: %w", err)
	}
	schema, err := c.Compile(manifestSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile manifest schema: %w", err)
	}
	return schema, nil
}

// Registry implements Client
func (c *HTTPClient) Registry() string {
	return c.registry
}

// EscapeName encodes a package name for a registry path; the scope separator
// becomes %2f
func EscapeName(fullname string) string {
	return strings.Replace(url.PathEscape(fullname), "%2F", "%2f", 1)
}

// FetchFullManifest implements Client. A 404 answer still yields a result when the
// body records an unpublished package.
func (c *HTTPClient) FetchFullManifest(ctx context.Context, fullname string) (*ManifestResult, error) {
	u := c.registry + "/" + EscapeName(fullname)
	resp, err := c.http.Do(ctx, http.MethodGet, u, nil)
	if err != nil {
		if resp == nil || resp.StatusCode != http.StatusNotFound {
			return nil, err
		}
		doc, parseErr := manifest.Parse(resp.Body)
		if parseErr != nil || doc.Unpublished() == nil {
			return nil, err
		}
		return &ManifestResult{URL: u, Status: resp.StatusCode, ContentLength: len(resp.Body), Manifest: doc}, nil
	}

	if err := c.validate(resp.Body); err != nil {
		return nil, err
	}
	doc, err := manifest.Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	return &ManifestResult{
		URL:           u,
		Status:        resp.StatusCode,
		ContentLength: contentLength(resp),
		Manifest:      doc,
	}, nil
}

func (c *HTTPClient) validate(body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid manifest json: %w", err)
	}
	if err := c.schema.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid manifest: %s", verr.Error())
		}
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}

// FetchDownloadRanges implements Client
func (c *HTTPClient) FetchDownloadRanges(ctx context.Context, registry, fullname, start, end string) (*DownloadsResult, error) {
	if registry == "" {
		registry = c.registry
	}
	u := fmt.Sprintf("%s/downloads/range/%s:%s/%s", strings.TrimRight(registry, "/"), start, end, fullname)
	resp, err := c.http.Do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Downloads []DayDownloads `json:"downloads"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode downloads of %s: %w", fullname, err)
	}
	return &DownloadsResult{URL: u, Status: resp.StatusCode, Downloads: body.Downloads}, nil
}

// CreateSyncJob implements Client
func (c *HTTPClient) CreateSyncJob(ctx context.Context, fullname string) (*SyncJob, error) {
	u := c.registry + "/" + EscapeName(fullname) + "/sync?sync_upstream=true&nodeps=true"
	resp, err := c.http.Do(ctx, http.MethodPut, u, nil)
	if err != nil {
		return nil, err
	}
	job := &SyncJob{URL: u, Status: resp.StatusCode, Raw: resp.Body}
	if err := json.Unmarshal(resp.Body, job); err != nil {
		return nil, fmt.Errorf("failed to decode sync job of %s: %w", fullname, err)
	}
	return job, nil
}

// PollSyncJob implements Client
func (c *HTTPClient) PollSyncJob(ctx context.Context, fullname, logID string, offset int64) (*SyncLog, error) {
	u := fmt.Sprintf("%s/%s/sync/log/%s?offset=%d", c.registry, EscapeName(fullname), url.PathEscape(logID), offset)
	resp, err := c.http.Do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	log := &SyncLog{URL: u, Status: resp.StatusCode}
	if err := json.Unmarshal(resp.Body, log); err != nil {
		return nil, fmt.Errorf("failed to decode sync log of %s: %w", fullname, err)
	}
	return log, nil
}

func contentLength(resp *httpclient.Response) int {
	for key, values := range resp.Header {
		if strings.EqualFold(key, "Content-Length") && len(values) > 0 {
			if n, err := strconv.Atoi(values[0]); err == nil {
				return n
			}
		}
	}
	return len(resp.Body)
}
