// Package refunds orchestrates refund attempts. Pix refunds try the
// company's primary pix provider and fall back to the other one; card
// refunds go to whichever provider took the money, there is no fallback.
package refunds

import (
	"context"
	"errors"
	"time"

	"github.com/brisapay/gateway/internal/app/service/notifier"
	"github.com/brisapay/gateway/internal/app/store"
	"github.com/brisapay/gateway/internal/models"
	"github.com/brisapay/gateway/internal/platform/providers"
	cfgpkg "github.com/brisapay/gateway/pkg/config"
	"github.com/brisapay/gateway/pkg/logctx"
	"github.com/brisapay/gateway/pkg/metrics"
	"github.com/brisapay/gateway/pkg/types"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	// ErrNotRefundable means the payment is not in the approved state.
	ErrNotRefundable = errors.New("payment is not refundable")
	// ErrWindowExpired means the system refund window has closed.
	ErrWindowExpired = errors.New("refund window expired")
	// ErrMissingNativeID means the payment never got a provider identifier,
	// so no provider can be asked to refund it.
	ErrMissingNativeID = errors.New("payment has no provider identifier")
	// ErrRefundFailed means every eligible provider refused or failed.
	ErrRefundFailed = errors.New("refund failed on all providers")
)

// Result reports which provider performed the refund.
type Result struct {
	Payment  *models.Payment
	Provider types.Provider
}

type Service struct {
	log      *zap.SugaredLogger
	payments store.PaymentStore
	registry *providers.Registry
	notifier *notifier.Dispatcher
	window   time.Duration
	now      func() time.Time
}

func NewService(log *zap.SugaredLogger, payments store.PaymentStore, registry *providers.Registry, dispatcher *notifier.Dispatcher, cfg *cfgpkg.Config) *Service {
	return &Service{
		log:      log,
		payments: payments,
		registry: registry,
		notifier: dispatcher,
		window:   cfg.Payments.RefundWindow,
		now:      time.Now,
	}
}

// Refund refunds the full payment amount. Only approved payments inside the
// window qualify; a payment already canceled or failed reports
// ErrNotRefundable, a missing payment propagates store.ErrNotFound.
func (s *Service) Refund(ctx context.Context, companyID, transactionID string) (*Result, error) {
	l := logctx.FromCtx(ctx, s.log)

	payment, err := s.payments.Get(ctx, companyID, transactionID)
	if err != nil {
		return nil, err
	}
	if payment.Status != types.PaymentStatusApproved {
		return nil, ErrNotRefundable
	}
	if s.now().Sub(payment.CreatedAt) > s.window {
		return nil, ErrWindowExpired
	}
	if payment.ProviderNativeID == nil || *payment.ProviderNativeID == "" {
		return nil, ErrMissingNativeID
	}
	nativeID := *payment.ProviderNativeID

	var performer types.Provider
	switch payment.Kind {
	case types.PaymentKindPix:
		performer, err = s.refundPix(ctx, payment, nativeID)
	default:
		performer, err = s.refundDirect(ctx, payment, nativeID)
	}
	if err != nil {
		return nil, err
	}

	row, updated, err := s.payments.MarkRefunded(ctx, companyID, transactionID, performer)
	if err != nil {
		return nil, err
	}
	if updated {
		metrics.PaymentsFinalized.WithLabelValues(string(performer), string(types.PaymentStatusCanceled), "refund").Inc()
		l.Infow("payment refunded",
			"company_id", companyID, "transaction_id", transactionID, "provider", performer)
		var url string
		if row.WebhookURL != nil {
			url = *row.WebhookURL
		}
		s.notifier.Notify(ctx, companyID, url, &notifier.Event{
			TransactionID: transactionID,
			Status:        row.Status,
			Provider:      row.Provider,
			Txid:          nativeID,
		})
	}
	return &Result{Payment: row, Provider: performer}, nil
}

// refundPix tries the primary pix provider, then the secondary. A rejection
// that proves the charge is unknown or out of window on the provider side
// aborts the fallback: the secondary cannot know the charge either.
func (s *Service) refundPix(ctx context.Context, payment *models.Payment, nativeID string) (types.Provider, error) {
	l := logctx.FromCtx(ctx, s.log)
	primary := payment.Provider
	secondary := types.ProviderAsaas
	if primary == types.ProviderAsaas {
		secondary = types.ProviderEfi
	}

	perr := s.tryRefund(ctx, primary, payment.CompanyID, nativeID)
	if perr == nil {
		return primary, nil
	}
	var rejected *providers.RejectedError
	if errors.As(perr, &rejected) &&
		(rejected.Reason == providers.RejectReasonNotFound || rejected.Reason == providers.RejectReasonWindowExpired) {
		return "", perr
	}
	l.Warnw("primary refund failed, trying secondary",
		"company_id", payment.CompanyID, "transaction_id", payment.TransactionID,
		"primary", primary, "secondary", secondary, "error", perr)

	serr := s.tryRefund(ctx, secondary, payment.CompanyID, nativeID)
	if serr == nil {
		return secondary, nil
	}
	l.Errorw("refund failed on both providers",
		"company_id", payment.CompanyID, "transaction_id", payment.TransactionID,
		"primary_error", perr, "secondary_error", serr)
	return "", ErrRefundFailed
}

func (s *Service) refundDirect(ctx context.Context, payment *models.Payment, nativeID string) (types.Provider, error) {
	if err := s.tryRefund(ctx, payment.Provider, payment.CompanyID, nativeID); err != nil {
		return "", err
	}
	return payment.Provider, nil
}

func (s *Service) tryRefund(ctx context.Context, provider types.Provider, companyID, nativeID string) error {
	client, err := s.registry.Get(provider)
	if err != nil {
		return err
	}
	result, err := client.CreateRefund(ctx, companyID, nativeID)
	if err != nil {
		return err
	}
	if result.Status != providers.StatusCanceled {
		return &providers.InconsistentError{Provider: provider, Detail: "refund reported non-canceled status"}
	}
	return nil
}

// Module exposes the refund service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
