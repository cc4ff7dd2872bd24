package privacy

import (
	"context"

	"github.com/lib/pq"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/metrics"
)

// DeleteResult reports rows removed per table, in deletion order.
type DeleteResult struct {
	OrgID   string         `json:"orgId"`
	Deleted map[string]int `json:"deleted"`
}

// deleteStep is one table in the cascade. Children always precede their
// parents; the order below is fixed and every step runs, in sequence.
type deleteStep struct {
	table string
	query string
	byOrg bool
}

var deleteOrder = []deleteStep{
	{"query_results", `DELETE FROM query_results WHERE query_id IN (SELECT id FROM queries WHERE brand_id = ANY($1))`, false},
	{"queries", `DELETE FROM queries WHERE brand_id = ANY($1)`, false},
	{"memo_views", `DELETE FROM memo_views WHERE memo_id IN (SELECT id FROM memos WHERE brand_id = ANY($1))`, false},
	{"memos", `DELETE FROM memos WHERE brand_id = ANY($1)`, false},
	{"competitors", `DELETE FROM competitors WHERE brand_id = ANY($1)`, false},
	{"search_stats", `DELETE FROM search_stats WHERE brand_id = ANY($1)`, false},
	{"webhook_configs", `DELETE FROM webhook_configs WHERE brand_id = ANY($1)`, false},
	{"integration_tokens", `DELETE FROM integration_tokens WHERE brand_id = ANY($1)`, false},
	{"brands", `DELETE FROM brands WHERE org_id = $1`, true},
	{"organization_invites", `DELETE FROM organization_invites WHERE org_id = $1`, true},
	{"organization_members", `DELETE FROM organization_members WHERE org_id = $1`, true},
	{"organizations", `DELETE FROM organizations WHERE id = $1`, true},
}

// Delete removes every row belonging to the organization, child tables
// first. The run is sequential and stops at the first failure, reporting the
// failing table; nothing after the failure is attempted and nothing is
// silently skipped.
func (s *Service) Delete(ctx context.Context, orgID, actorID string) (*DeleteResult, error) {
	brandIDs, err := s.collectIDs(ctx, `SELECT id FROM brands WHERE org_id = $1`, orgID)
	if err != nil {
		metrics.PrivacyOperationsTotal.WithLabelValues("delete", "error").Inc()
		return nil, apperrors.NewDeleteFailedError("brands", err)
	}

	result := &DeleteResult{OrgID: orgID, Deleted: map[string]int{}}

	for _, step := range deleteOrder {
		if step.table == "memos" && s.memoIndex != nil {
			for _, brandID := range brandIDs {
				if err := s.memoIndex.DeleteByBrand(ctx, brandID); err != nil {
					metrics.PrivacyOperationsTotal.WithLabelValues("delete", "error").Inc()
					return nil, apperrors.NewDeleteFailedError("memos_index", err)
				}
			}
		}

		var arg interface{} = pq.Array(brandIDs)
		if step.byOrg {
			arg = orgID
		}
		res, err := s.db.ExecContext(ctx, step.query, arg)
		if err != nil {
			metrics.PrivacyOperationsTotal.WithLabelValues("delete", "error").Inc()
			return nil, apperrors.NewDeleteFailedError(step.table, err)
		}
		n, _ := res.RowsAffected()
		result.Deleted[step.table] = int(n)
	}

	s.recordAudit(ctx, orgID, actorID, "delete", result.Deleted)
	metrics.PrivacyOperationsTotal.WithLabelValues("delete", "success").Inc()

	s.logger.Info("organization deleted", map[string]interface{}{
		"orgId":  orgID,
		"brands": len(brandIDs),
	})
	return result, nil
}
