// Package search maintains the memo full-text index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/stephennewman/contextmemo-sub002/internal/common/database"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
)

// MemoDocument is the indexed shape of a published memo.
type MemoDocument struct {
	MemoID      string    `json:"memo_id"`
	BrandID     string    `json:"brand_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Slug        string    `json:"slug"`
	PublishedAt time.Time `json:"published_at"`
}

// MemoHit is one search result.
type MemoHit struct {
	MemoID string  `json:"memoId"`
	Title  string  `json:"title"`
	Slug   string  `json:"slug"`
	Score  float64 `json:"score"`
}

// MemoIndex wraps the memos Elasticsearch index.
type MemoIndex struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewMemoIndex(es *database.ElasticsearchClient, index string, log logger.Logger) *MemoIndex {
	return &MemoIndex{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search"}),
	}
}

// Index writes or overwrites a memo document.
func (m *MemoIndex) Index(ctx context.Context, doc *MemoDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return apperrors.NewIndexingFailedError(doc.MemoID, err)
	}

	req := esapi.IndexRequest{
		Index:      m.index,
		DocumentID: doc.MemoID,
		Body:       bytes.NewReader(payload),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, m.es.Client)
	if err != nil {
		return apperrors.NewIndexingFailedError(doc.MemoID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewIndexingFailedError(doc.MemoID, fmt.Errorf("index response: %s", res.Status()))
	}

	m.logger.Info("memo indexed", map[string]interface{}{
		"memoId":  doc.MemoID,
		"brandId": doc.BrandID,
	})
	return nil
}

// Search runs a multi-match over title and body scoped to one brand.
func (m *MemoIndex) Search(ctx context.Context, brandID, q string, limit int) ([]MemoHit, error) {
	if limit <= 0 {
		limit = 20
	}

	query := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  q,
						"fields": []string{"title^2", "body"},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"brand_id": brandID},
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}

	res, err := m.es.Client.Search(
		m.es.Client.Search.WithContext(ctx),
		m.es.Client.Search.WithIndex(m.index),
		m.es.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(fmt.Errorf("search response: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64      `json:"_score"`
				Source MemoDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}

	hits := make([]MemoHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, MemoHit{
			MemoID: h.Source.MemoID,
			Title:  h.Source.Title,
			Slug:   h.Source.Slug,
			Score:  h.Score,
		})
	}
	return hits, nil
}

// DeleteByBrand removes every indexed memo of a brand.
func (m *MemoIndex) DeleteByBrand(ctx context.Context, brandID string) error {
	body := strings.NewReader(fmt.Sprintf(`{"query":{"term":{"brand_id":%q}}}`, brandID))
	req := esapi.DeleteByQueryRequest{
		Index: []string{m.index},
		Body:  body,
	}
	res, err := req.Do(ctx, m.es.Client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()
	// a missing index is fine during cleanup
	if res.IsError() && res.StatusCode != 404 {
		return apperrors.NewSearchQueryFailedError(fmt.Errorf("delete_by_query response: %s", res.Status()))
	}

	m.logger.Info("brand memos removed from index", map[string]interface{}{
		"brandId": brandID,
	})
	return nil
}
