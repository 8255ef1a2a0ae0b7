// Package search pushes submitted applications into Elasticsearch so
// caseworkers can find them by subject, owner or location. Indexing is
// best-effort after submission; the relational store stays authoritative.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{client: client, index: index, logger: log}
}

type submittedDocument struct {
	ApplicationID string     `json:"applicationId"`
	SubjectID     string     `json:"subjectId"`
	Owner         string     `json:"owner"`
	Location      string     `json:"location"`
	SubmittedAt   *time.Time `json:"submittedAt"`
	IndexedAt     time.Time  `json:"indexedAt"`
}

// Index upserts the submitted application's search document, keyed by
// application id so replays overwrite rather than duplicate.
func (i *Indexer) Index(ctx context.Context, app *models.Application) error {
	doc := submittedDocument{
		ApplicationID: app.ID,
		SubjectID:     app.SubjectID,
		Owner:         app.Owner,
		Location:      app.OriginLocation,
		SubmittedAt:   app.SubmittedAt,
		IndexedAt:     time.Now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewValidationError("search document is not serialisable: " + err.Error())
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: app.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.NewUnavailableError("elasticsearch", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewUnavailableError("elasticsearch",
			fmt.Errorf("index request returned %s", res.Status()))
	}

	i.logger.Debug("application indexed", map[string]interface{}{
		"applicationId": app.ID,
		"index":         i.index,
	})
	return nil
}
