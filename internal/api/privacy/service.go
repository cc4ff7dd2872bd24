// Package privacy implements tenant data export and deletion.
package privacy

import (
	"database/sql"

	awsclient "github.com/stephennewman/contextmemo-sub002/internal/common/aws"
	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/search"
)

type Service struct {
	db            *sql.DB
	sns           *awsclient.SNSClient
	memoIndex     *search.MemoIndex
	auditTopicARN string
	pageSize      int
	logger        logger.Logger
}

func NewService(db *sql.DB, snsClient *awsclient.SNSClient, memoIndex *search.MemoIndex, cfg *config.Config, log logger.Logger) *Service {
	pageSize := cfg.Privacy.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Service{
		db:            db,
		sns:           snsClient,
		memoIndex:     memoIndex,
		auditTopicARN: cfg.Integrations.AWS.SNS.AuditTopicARN,
		pageSize:      pageSize,
		logger:        log.WithFields(map[string]interface{}{"component": "privacy"}),
	}
}
