package privacy

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/metrics"
)

// ExportDocument is everything stored for one organization, keyed by table
// name, plus a manifest of row counts.
type ExportDocument struct {
	OrgID    string                              `json:"orgId"`
	Tables   map[string][]map[string]interface{} `json:"tables"`
	Manifest map[string]int                      `json:"manifest"`
}

// Export gathers every row belonging to the organization. Independent table
// scans run in parallel; each scan pages by primary key.
func (s *Service) Export(ctx context.Context, orgID, actorID string) (*ExportDocument, error) {
	brandIDs, err := s.collectIDs(ctx, `SELECT id FROM brands WHERE org_id = $1`, orgID)
	if err != nil {
		return nil, apperrors.NewExportFailedError("brands", err)
	}
	memoIDs, err := s.collectIDsByBrands(ctx, "memos", brandIDs)
	if err != nil {
		return nil, apperrors.NewExportFailedError("memos", err)
	}
	queryIDs, err := s.collectIDsByBrands(ctx, "queries", brandIDs)
	if err != nil {
		return nil, apperrors.NewExportFailedError("queries", err)
	}

	doc := &ExportDocument{
		OrgID:    orgID,
		Tables:   map[string][]map[string]interface{}{},
		Manifest: map[string]int{},
	}
	var mu sync.Mutex

	scans := []struct {
		table  string
		keyCol string
		keys   []string
	}{
		{"organizations", "id", []string{orgID}},
		{"organization_members", "org_id", []string{orgID}},
		{"organization_invites", "org_id", []string{orgID}},
		{"brands", "org_id", []string{orgID}},
		{"competitors", "brand_id", brandIDs},
		{"memos", "brand_id", brandIDs},
		{"memo_views", "memo_id", memoIDs},
		{"queries", "brand_id", brandIDs},
		{"query_results", "query_id", queryIDs},
		{"search_stats", "brand_id", brandIDs},
		{"webhook_configs", "brand_id", brandIDs},
		{"integration_tokens", "brand_id", brandIDs},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, scan := range scans {
		scan := scan
		g.Go(func() error {
			rows, err := s.exportTable(gctx, scan.table, scan.keyCol, scan.keys)
			if err != nil {
				return apperrors.NewExportFailedError(scan.table, err)
			}
			mu.Lock()
			doc.Tables[scan.table] = rows
			doc.Manifest[scan.table] = len(rows)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.PrivacyOperationsTotal.WithLabelValues("export", "error").Inc()
		return nil, err
	}

	s.recordAudit(ctx, orgID, actorID, "export", doc.Manifest)
	metrics.PrivacyOperationsTotal.WithLabelValues("export", "success").Inc()

	s.logger.Info("organization export completed", map[string]interface{}{
		"orgId":  orgID,
		"tables": len(doc.Tables),
	})
	return doc, nil
}

// exportTable pages through one table filtered by a key column. Column
// names come from the driver so new columns are exported without code
// changes.
func (s *Service) exportTable(ctx context.Context, table, keyCol string, keys []string) ([]map[string]interface{}, error) {
	out := []map[string]interface{}{}
	if len(keys) == 0 {
		return out, nil
	}

	// table and keyCol come from the fixed scan list above, never from input.
	// id breaks ties so offset paging stays stable on non-unique key columns.
	query := fmt.Sprintf(
		`SELECT * FROM %s WHERE %s = ANY($1) ORDER BY %s, id LIMIT $2 OFFSET $3`,
		table, keyCol, keyCol)

	for offset := 0; ; offset += s.pageSize {
		rows, err := s.db.QueryContext(ctx, query, pq.Array(keys), s.pageSize, offset)
		if err != nil {
			return nil, err
		}

		page, err := scanGeneric(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < s.pageSize {
			break
		}
	}
	return out, nil
}

func scanGeneric(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[col] = v
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *Service) collectIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Service) collectIDsByBrands(ctx context.Context, table string, brandIDs []string) ([]string, error) {
	if len(brandIDs) == 0 {
		return []string{}, nil
	}
	return s.collectIDs(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE brand_id = ANY($1)`, table),
		pq.Array(brandIDs))
}
