package app

import (
	"time"

	"github.com/brisapay/gateway/internal/app/api/server"
	notificationlog "github.com/brisapay/gateway/internal/app/service/notification_log"
	"github.com/brisapay/gateway/internal/app/service/notifier"
	"github.com/brisapay/gateway/internal/app/service/payments"
	"github.com/brisapay/gateway/internal/app/service/reconciler"
	"github.com/brisapay/gateway/internal/app/service/refunds"
	"github.com/brisapay/gateway/internal/app/store"
	"github.com/brisapay/gateway/internal/platform/db"
	"github.com/brisapay/gateway/pkg/config"
	"github.com/brisapay/gateway/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	store.Module,
	providersModule,
	notifier.Module,
	notificationlog.Module,
	reconciler.Module,
	payments.Module,
	refunds.Module,
	server.Module,
)
