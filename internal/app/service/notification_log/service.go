package notification_log

import (
	"context"

	"github.com/brisapay/gateway/internal/models"
	"github.com/brisapay/gateway/pkg/logctx"
	"github.com/brisapay/gateway/pkg/tool"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a provider notification log. Nil input is ignored.
func (s *Service) Save(ctx context.Context, log *models.ProviderNotificationLog) {
	go func() {
		if log == nil || s.db == nil {
			return
		}
		if log.ID == "" {
			log.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.Save(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save notification log: %v", err)
		}
	}()
}

// Module exposes the notification log service via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
