// Package payments is the orchestrator: it owns the payment lifecycle and
// sequences validation, persistence, the provider call and the follow-up
// machinery. Providers never talk to the store and the store never talks to
// providers; everything meets here.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brisapay/gateway/internal/app/service/notifier"
	"github.com/brisapay/gateway/internal/app/service/reconciler"
	"github.com/brisapay/gateway/internal/app/store"
	"github.com/brisapay/gateway/internal/models"
	"github.com/brisapay/gateway/internal/platform/cardvault"
	"github.com/brisapay/gateway/internal/platform/providers"
	"github.com/brisapay/gateway/pkg/logctx"
	"github.com/brisapay/gateway/pkg/metrics"
	"github.com/brisapay/gateway/pkg/tool"
	"github.com/brisapay/gateway/pkg/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const maxInstallments = 12

// CreatePixRequest is a pix charge as the API accepts it.
type CreatePixRequest struct {
	CompanyID     string
	TransactionID string
	Amount        decimal.Decimal
	Description   string
	WebhookURL    string
	PayerName     string
	PayerTaxID    string
	DataMarketing json.RawMessage
}

// CreateCardRequest is a credit-card charge. Card material arrives either
// as a vault token or as raw fields; both resolve before anything persists.
type CreateCardRequest struct {
	CompanyID     string
	TransactionID string
	Amount        decimal.Decimal
	Description   string
	WebhookURL    string
	Installments  int
	CardToken     string
	Card          map[string]any
	DataMarketing json.RawMessage
}

// CreateResult is what both create operations hand back to the API layer.
type CreateResult struct {
	Payment *models.Payment
	// AlreadyProcessed marks an idempotent replay: the returned payment is
	// the existing row, verbatim, and no provider call happened.
	AlreadyProcessed bool
	// Acquirer return code/message on card declines.
	ReturnCode    string
	ReturnMessage string
}

// Notifier delivers subscriber webhooks. Satisfied by notifier.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, companyID, url string, evt *notifier.Event)
}

// Poller starts the reconciliation loop for a pending payment. Satisfied by
// reconciler.Registry.
type Poller interface {
	Start(ctx context.Context, p *models.Payment, client providers.Client) bool
}

// Manager is the surface the API handlers program against.
type Manager interface {
	CreatePixPayment(ctx context.Context, req *CreatePixRequest) (*CreateResult, error)
	CreateCreditCardPayment(ctx context.Context, req *CreateCardRequest) (*CreateResult, error)
	GetPayment(ctx context.Context, companyID, transactionID string) (*models.Payment, error)
	Scan(ctx context.Context, req *store.ScanRequest) (*store.ScanResponse, error)
	FinalizeFromProvider(ctx context.Context, provider types.Provider, nativeID string, status types.PaymentStatus, raw json.RawMessage) error
}

type Service struct {
	log       *zap.SugaredLogger
	payments  store.PaymentStore
	companies store.CompanyStore
	registry  *providers.Registry
	vault     cardvault.Vault
	notifier  Notifier
	poller    Poller
}

func NewService(
	log *zap.SugaredLogger,
	payments store.PaymentStore,
	companies store.CompanyStore,
	registry *providers.Registry,
	vault cardvault.Vault,
	dispatcher *notifier.Dispatcher,
	poller *reconciler.Registry,
) *Service {
	return &Service{
		log:       log,
		payments:  payments,
		companies: companies,
		registry:  registry,
		vault:     vault,
		notifier:  dispatcher,
		poller:    poller,
	}
}

// pixProvider resolves the company's pix routing choice, defaulting when
// the company has none configured.
func pixProvider(company *models.Company) (types.Provider, error) {
	p := company.PixProvider
	if p == "" {
		p = types.DefaultPixProvider
	}
	if !p.ValidForPix() {
		return "", fmt.Errorf("%w: %s cannot process pix", ErrUnsupportedProvider, p)
	}
	return p, nil
}

func creditProvider(company *models.Company) (types.Provider, error) {
	p := company.CreditProvider
	if p == "" {
		p = types.DefaultCreditProvider
	}
	if !p.ValidForCredit() {
		return "", fmt.Errorf("%w: %s cannot process credit card", ErrUnsupportedProvider, p)
	}
	return p, nil
}

func (s *Service) CreatePixPayment(ctx context.Context, req *CreatePixRequest) (*CreateResult, error) {
	l := logctx.FromCtx(ctx, s.log)
	if req.TransactionID == "" {
		req.TransactionID = tool.GenerateUUIDV7()
	}

	if existing, err := s.payments.Get(ctx, req.CompanyID, req.TransactionID); err == nil {
		return &CreateResult{Payment: existing, AlreadyProcessed: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	company, err := s.companies.Get(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	provider, err := pixProvider(company)
	if err != nil {
		return nil, err
	}
	client, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	// Everything rejectable without touching a provider is rejected here,
	// before any row exists.
	if !req.Amount.IsPositive() {
		return nil, providers.NewValidationError("amount", "must be greater than zero")
	}
	var pixKey string
	if provider == types.ProviderEfi {
		if company.PixKey == nil || *company.PixKey == "" {
			return nil, providers.NewValidationError("pix_key", "company has no receiving pix key configured")
		}
		pixKey = *company.PixKey
	}

	payment := &models.Payment{
		ID:            tool.GenerateUUIDV7(),
		CompanyID:     req.CompanyID,
		TransactionID: req.TransactionID,
		Provider:      provider,
		Kind:          types.PaymentKindPix,
		Status:        types.PaymentStatusPending,
		Amount:        req.Amount,
		Installments:  1,
		DataMarketing: datatypes.JSON(req.DataMarketing),
	}
	if req.WebhookURL != "" {
		payment.WebhookURL = lo.ToPtr(req.WebhookURL)
	}
	payment, created, err := s.payments.Create(ctx, payment)
	if err != nil {
		return nil, err
	}
	if !created {
		return &CreateResult{Payment: payment, AlreadyProcessed: true}, nil
	}
	metrics.PaymentsCreated.WithLabelValues(string(provider), string(types.PaymentKindPix)).Inc()

	charge := &providers.ChargeRequest{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Kind:          types.PaymentKindPix,
		PixKey:        pixKey,
		Description:   req.Description,
		PayerName:     req.PayerName,
		PayerTaxID:    req.PayerTaxID,
	}
	if provider == types.ProviderEfi {
		charge.Txid = tool.GeneratePixTxid()
	}

	result, err := client.CreateCharge(ctx, req.CompanyID, charge)
	if err != nil {
		return s.handleChargeError(ctx, payment, err)
	}

	payment, err = s.payments.AttachChargeInfo(ctx, req.CompanyID, req.TransactionID, store.ChargeInfo{
		ProviderNativeID: result.NativeID,
		PixCopyPaste:     result.PixCopyPaste,
		QRCodeImage:      result.QRCodeImage,
		RefundableUntil:  result.RefundableUntil,
		ProviderPayload:  datatypes.JSON(result.Raw),
	})
	if err != nil {
		return nil, err
	}

	if result.Status.Terminal() {
		return s.finalizeSync(ctx, payment, result, "")
	}

	// Pending is the normal pix outcome. The poller only runs when the
	// subscriber asked to be called back; without a webhook URL they poll
	// the status endpoint themselves.
	if req.WebhookURL != "" {
		s.poller.Start(ctx, payment, client)
	}
	l.Infow("pix charge created",
		"company_id", req.CompanyID, "transaction_id", req.TransactionID,
		"provider", provider, "native_id", result.NativeID)
	return &CreateResult{Payment: payment}, nil
}

func (s *Service) CreateCreditCardPayment(ctx context.Context, req *CreateCardRequest) (*CreateResult, error) {
	l := logctx.FromCtx(ctx, s.log)
	if req.TransactionID == "" {
		req.TransactionID = tool.GenerateUUIDV7()
	}

	if existing, err := s.payments.Get(ctx, req.CompanyID, req.TransactionID); err == nil {
		return &CreateResult{Payment: existing, AlreadyProcessed: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	company, err := s.companies.Get(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	provider, err := creditProvider(company)
	if err != nil {
		return nil, err
	}
	client, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	if !req.Amount.IsPositive() {
		return nil, providers.NewValidationError("amount", "must be greater than zero")
	}
	if req.Installments < 1 {
		req.Installments = 1
	}
	if req.Installments > maxInstallments {
		return nil, providers.NewValidationError("installments", fmt.Sprintf("must be at most %d", maxInstallments))
	}

	// Card material resolves before any row exists: a bad token or a
	// malformed card must not leave a pending payment behind.
	card, err := s.resolveCard(ctx, req)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:            tool.GenerateUUIDV7(),
		CompanyID:     req.CompanyID,
		TransactionID: req.TransactionID,
		Provider:      provider,
		Kind:          types.PaymentKindCreditCard,
		Status:        types.PaymentStatusPending,
		Amount:        req.Amount,
		Installments:  req.Installments,
		DataMarketing: datatypes.JSON(req.DataMarketing),
	}
	if req.WebhookURL != "" {
		payment.WebhookURL = lo.ToPtr(req.WebhookURL)
	}
	payment, created, err := s.payments.Create(ctx, payment)
	if err != nil {
		return nil, err
	}
	if !created {
		return &CreateResult{Payment: payment, AlreadyProcessed: true}, nil
	}
	metrics.PaymentsCreated.WithLabelValues(string(provider), string(types.PaymentKindCreditCard)).Inc()

	charge := &providers.ChargeRequest{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Kind:          types.PaymentKindCreditCard,
		Description:   req.Description,
		Installments:  req.Installments,
		Card:          card,
	}

	result, err := client.CreateCharge(ctx, req.CompanyID, charge)
	if err != nil {
		return s.handleChargeError(ctx, payment, err)
	}

	if result.NativeID != "" {
		payment, err = s.payments.AttachChargeInfo(ctx, req.CompanyID, req.TransactionID, store.ChargeInfo{
			ProviderNativeID: result.NativeID,
			ProviderPayload:  datatypes.JSON(result.Raw),
		})
		if err != nil {
			return nil, err
		}
	}

	// Card authorization is synchronous: approved or declined, never
	// pending past this point unless the provider answered ambiguously.
	if !result.Status.Terminal() {
		l.Errorw("card charge left non-terminal",
			"company_id", req.CompanyID, "transaction_id", req.TransactionID, "provider", provider)
		return nil, ErrGatewayInconsistent
	}
	return s.finalizeSync(ctx, payment, result, result.ReturnMessage)
}

func (s *Service) resolveCard(ctx context.Context, req *CreateCardRequest) (*providers.CardFields, error) {
	fields := req.Card
	if req.CardToken != "" {
		resolved, err := s.vault.Resolve(ctx, req.CompanyID, req.CardToken)
		if err != nil {
			return nil, providers.NewValidationError("card_token", "token cannot be resolved")
		}
		fields = resolved
	}
	if fields == nil {
		return nil, providers.NewValidationError("card", "card fields or card_token are required")
	}
	return cardvault.NormalizeFields(fields)
}

// finalizeSync records a terminal outcome reached on the request path and
// fires the webhook when the transition actually happened here.
func (s *Service) finalizeSync(ctx context.Context, payment *models.Payment, result *providers.Result, returnMessage string) (*CreateResult, error) {
	status := result.Status.PaymentStatus()
	row, updated, err := s.payments.Finalize(ctx, payment.CompanyID, payment.TransactionID, status, datatypes.JSON(result.Raw))
	if err != nil {
		return nil, err
	}
	if updated {
		metrics.PaymentsFinalized.WithLabelValues(string(payment.Provider), string(status), "sync").Inc()
		s.notifyPayment(ctx, row, result.Raw)
	}
	return &CreateResult{
		Payment:       row,
		ReturnCode:    result.ReturnCode,
		ReturnMessage: returnMessage,
	}, nil
}

// handleChargeError maps a failed provider call onto the payment row. Only
// a definite rejection finalizes; unavailable and inconsistent answers leave
// the payment pending because the charge may exist on the provider's side.
func (s *Service) handleChargeError(ctx context.Context, payment *models.Payment, err error) (*CreateResult, error) {
	l := logctx.FromCtx(ctx, s.log)

	var rejected *providers.RejectedError
	if errors.As(err, &rejected) {
		row, updated, ferr := s.payments.Finalize(ctx, payment.CompanyID, payment.TransactionID, types.PaymentStatusFailed, nil)
		if ferr != nil {
			return nil, ferr
		}
		if updated {
			metrics.PaymentsFinalized.WithLabelValues(string(payment.Provider), string(types.PaymentStatusFailed), "sync").Inc()
			s.notifyPayment(ctx, row, nil)
		}
		return &CreateResult{
			Payment:       row,
			ReturnCode:    rejected.Code,
			ReturnMessage: rejected.Message,
		}, nil
	}

	var inconsistent *providers.InconsistentError
	if errors.As(err, &inconsistent) {
		l.Errorw("provider answered inconsistently, payment left pending",
			"company_id", payment.CompanyID, "transaction_id", payment.TransactionID,
			"provider", payment.Provider, "detail", inconsistent.Detail)
		return nil, ErrGatewayInconsistent
	}

	// Unavailable or unknown: the payment stays pending and the error
	// propagates so the caller sees a 5xx.
	l.Errorw("provider call failed, payment left pending",
		"company_id", payment.CompanyID, "transaction_id", payment.TransactionID,
		"provider", payment.Provider, "error", err)
	return nil, err
}

func (s *Service) notifyPayment(ctx context.Context, row *models.Payment, raw json.RawMessage) {
	var url string
	if row.WebhookURL != nil {
		url = *row.WebhookURL
	}
	var txid string
	if row.ProviderNativeID != nil {
		txid = *row.ProviderNativeID
	}
	s.notifier.Notify(ctx, row.CompanyID, url, &notifier.Event{
		TransactionID: row.TransactionID,
		Status:        row.Status,
		Provider:      row.Provider,
		Txid:          txid,
		Payload:       raw,
		DataMarketing: json.RawMessage(row.DataMarketing),
	})
}

func (s *Service) GetPayment(ctx context.Context, companyID, transactionID string) (*models.Payment, error) {
	return s.payments.Get(ctx, companyID, transactionID)
}

func (s *Service) Scan(ctx context.Context, req *store.ScanRequest) (*store.ScanResponse, error) {
	return s.payments.Scan(ctx, req)
}

// FinalizeFromProvider applies a provider-pushed status. Used by the
// inbound webhook handlers; the conditional write makes replays and races
// with the poller harmless.
func (s *Service) FinalizeFromProvider(ctx context.Context, provider types.Provider, nativeID string, status types.PaymentStatus, raw json.RawMessage) error {
	l := logctx.FromCtx(ctx, s.log)
	payment, err := s.payments.GetByNativeID(ctx, nativeID)
	if err != nil {
		return err
	}
	if payment.Provider != provider {
		return fmt.Errorf("native id %s belongs to provider %s, not %s", nativeID, payment.Provider, provider)
	}

	var (
		row     *models.Payment
		updated bool
	)
	if status == types.PaymentStatusCanceled && payment.Status == types.PaymentStatusApproved {
		// Provider-initiated refund of an approved payment.
		row, updated, err = s.payments.MarkRefunded(ctx, payment.CompanyID, payment.TransactionID, provider)
	} else {
		row, updated, err = s.payments.Finalize(ctx, payment.CompanyID, payment.TransactionID, status, datatypes.JSON(raw))
	}
	if err != nil {
		return err
	}
	if !updated {
		l.Infow("provider notification ignored, no transition",
			"native_id", nativeID, "status", status, "current", payment.Status)
		return nil
	}

	metrics.PaymentsFinalized.WithLabelValues(string(provider), string(status), "webhook").Inc()
	s.notifyPayment(ctx, row, raw)
	return nil
}
