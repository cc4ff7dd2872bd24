package privacy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

// auditEvent is published to SNS and stored in privacy_audit for every
// export or delete run.
type auditEvent struct {
	ID        string         `json:"id"`
	OrgID     string         `json:"orgId"`
	ActorID   string         `json:"actorId"`
	Operation string         `json:"operation"`
	Detail    map[string]int `json:"detail"`
	Timestamp time.Time      `json:"timestamp"`
}

// recordAudit writes the audit row and publishes the SNS event. Audit
// failures are logged, not surfaced: the privacy operation itself already
// succeeded.
func (s *Service) recordAudit(ctx context.Context, orgID, actorID, operation string, detail map[string]int) {
	event := auditEvent{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		ActorID:   actorID,
		Operation: operation,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("audit event marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO privacy_audit (id, org_id, action, actor, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, orgID, operation, actorID, payload, event.Timestamp,
	); err != nil {
		s.logger.Error("audit row insert failed", map[string]interface{}{
			"orgId":     orgID,
			"operation": operation,
			"error":     err.Error(),
		})
	}

	if s.sns == nil || s.auditTopicARN == "" {
		return
	}
	_, err = s.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.auditTopicARN),
		Subject:  aws.String("privacy." + operation),
		Message:  aws.String(string(payload)),
	})
	if err != nil {
		s.logger.Error("audit event publish failed", map[string]interface{}{
			"orgId":     orgID,
			"operation": operation,
			"error":     err.Error(),
		})
		return
	}

	s.logger.Info("privacy audit recorded", map[string]interface{}{
		"orgId":     orgID,
		"operation": operation,
	})
}
