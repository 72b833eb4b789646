package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cortexai/ingest/internal/models"
	"github.com/cortexai/ingest/internal/pipeline"
	"github.com/elastic/go-elasticsearch/v8"
)

var _ pipeline.ReportSink = (*ElasticsearchService)(nil)

// ElasticsearchService indexes quality reports for dashboards. It is an
// observability sink: callers log its failures and keep ingesting.
type ElasticsearchService struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticsearchService creates an ES client using go-elasticsearch/v8
func NewElasticsearchService(scheme, host string, port int, user, password string, verifyCerts bool, maxRetries int, index string) (*ElasticsearchService, error) {
	addr := fmt.Sprintf("%s://%s:%d", scheme, host, port)

	cfg := elasticsearch.Config{
		Addresses:  []string{addr},
		MaxRetries: maxRetries,
	}
	if user != "" {
		cfg.Username = user
		cfg.Password = password
	}
	if !verifyCerts {
		cfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
			},
		}
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return &ElasticsearchService{client: client, index: index}, nil
}

// TestConnection pings the cluster
func (s *ElasticsearchService) TestConnection(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

type qualityDocument struct {
	InvocationID string                `json:"invocation_id"`
	IndexedAt    time.Time             `json:"indexed_at"`
	Report       *models.QualityReport `json:"report"`
}

// IndexReport writes one quality report document keyed by invocation.
func (s *ElasticsearchService) IndexReport(ctx context.Context, invocationID string, report *models.QualityReport) error {
	body, err := json.Marshal(qualityDocument{
		InvocationID: invocationID,
		IndexedAt:    time.Now().UTC(),
		Report:       report,
	})
	if err != nil {
		return fmt.Errorf("marshal quality report: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(invocationID),
	)
	if err != nil {
		return fmt.Errorf("index quality report: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index quality report: %s", res.Status())
	}
	return nil
}
