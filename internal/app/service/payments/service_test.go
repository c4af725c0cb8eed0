package payments

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/brisapay/gateway/internal/app/service/notifier"
	"github.com/brisapay/gateway/internal/app/store"
	"github.com/brisapay/gateway/internal/models"
	"github.com/brisapay/gateway/internal/platform/cardvault"
	"github.com/brisapay/gateway/internal/platform/providers"
	"github.com/brisapay/gateway/pkg/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// fakePaymentStore is an in-memory PaymentStore with the same conditional
// transition semantics as the gorm implementation.
type fakePaymentStore struct {
	mu   sync.Mutex
	rows map[string]*models.Payment
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{rows: make(map[string]*models.Payment)}
}

func storeKey(companyID, transactionID string) string { return companyID + "/" + transactionID }

func (f *fakePaymentStore) Create(_ context.Context, p *models.Payment) (*models.Payment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := storeKey(p.CompanyID, p.TransactionID)
	if existing, ok := f.rows[key]; ok {
		return existing, false, nil
	}
	p.CreatedAt = time.Now()
	f.rows[key] = p
	return p, true, nil
}

func (f *fakePaymentStore) Get(_ context.Context, companyID, transactionID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.rows[storeKey(companyID, transactionID)]; ok {
		return p, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakePaymentStore) GetByNativeID(_ context.Context, nativeID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.ProviderNativeID != nil && *p.ProviderNativeID == nativeID {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakePaymentStore) AttachChargeInfo(_ context.Context, companyID, transactionID string, info store.ChargeInfo) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[storeKey(companyID, transactionID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	if info.ProviderNativeID != "" {
		p.ProviderNativeID = lo.ToPtr(info.ProviderNativeID)
	}
	if info.PixCopyPaste != "" {
		p.PixCopyPaste = lo.ToPtr(info.PixCopyPaste)
	}
	if info.QRCodeImage != "" {
		p.QRCodeImage = lo.ToPtr(info.QRCodeImage)
	}
	p.RefundableUntil = info.RefundableUntil
	return p, nil
}

func (f *fakePaymentStore) Finalize(_ context.Context, companyID, transactionID string, status types.PaymentStatus, payload datatypes.JSON) (*models.Payment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[storeKey(companyID, transactionID)]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if p.Status != types.PaymentStatusPending {
		return p, false, nil
	}
	p.Status = status
	if payload != nil {
		p.ProviderPayload = &payload
	}
	return p, true, nil
}

func (f *fakePaymentStore) MarkRefunded(_ context.Context, companyID, transactionID string, by types.Provider) (*models.Payment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[storeKey(companyID, transactionID)]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if p.Status != types.PaymentStatusApproved {
		return p, false, nil
	}
	p.Status = types.PaymentStatusCanceled
	p.RefundedBy = &by
	return p, true, nil
}

func (f *fakePaymentStore) Scan(_ context.Context, _ *store.ScanRequest) (*store.ScanResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &store.ScanResponse{}
	for _, p := range f.rows {
		out.Items = append(out.Items, p)
	}
	out.Total = int64(len(out.Items))
	return out, nil
}

type fakeCompanyStore struct {
	companies map[string]*models.Company
}

func (f *fakeCompanyStore) Get(_ context.Context, companyID string) (*models.Company, error) {
	if c, ok := f.companies[companyID]; ok {
		return c, nil
	}
	return nil, store.ErrNotFound
}

// fakeClient scripts CreateCharge / GetStatus / CreateRefund outcomes and
// counts invocations.
type fakeClient struct {
	provider     types.Provider
	chargeResult *providers.Result
	chargeErr    error
	chargeCalls  int
}

func (f *fakeClient) Provider() types.Provider { return f.provider }

func (f *fakeClient) CreateCharge(_ context.Context, _ string, _ *providers.ChargeRequest) (*providers.Result, error) {
	f.chargeCalls++
	return f.chargeResult, f.chargeErr
}

func (f *fakeClient) GetStatus(_ context.Context, _, _ string) (*providers.Result, error) {
	return &providers.Result{Status: providers.StatusPending}, nil
}

func (f *fakeClient) CreateRefund(_ context.Context, _, _ string) (*providers.Result, error) {
	return &providers.Result{Status: providers.StatusCanceled}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []*notifier.Event
}

func (f *fakeNotifier) Notify(_ context.Context, _, _ string, evt *notifier.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

type fakePoller struct {
	started []string
}

func (f *fakePoller) Start(_ context.Context, p *models.Payment, _ providers.Client) bool {
	f.started = append(f.started, p.TransactionID)
	return true
}

type fixture struct {
	svc      *Service
	payments *fakePaymentStore
	notifier *fakeNotifier
	poller   *fakePoller
	efi      *fakeClient
	rede     *fakeClient
}

func newFixture(t *testing.T, company *models.Company) *fixture {
	t.Helper()
	f := &fixture{
		payments: newFakePaymentStore(),
		notifier: &fakeNotifier{},
		poller:   &fakePoller{},
		efi:      &fakeClient{provider: types.ProviderEfi},
		rede:     &fakeClient{provider: types.ProviderRede},
	}
	f.svc = &Service{
		log:       zap.NewNop().Sugar(),
		payments:  f.payments,
		companies: &fakeCompanyStore{companies: map[string]*models.Company{company.ID: company}},
		registry:  providers.NewRegistry(f.efi, f.rede, &fakeClient{provider: types.ProviderAsaas}),
		vault:     cardvault.NewMemoryVault(),
		notifier:  f.notifier,
		poller:    f.poller,
	}
	return f
}

func testCompany() *models.Company {
	return &models.Company{
		ID:     "company-a",
		Name:   "ACME",
		PixKey: lo.ToPtr("acme@pix.example"),
	}
}

func cardFields() map[string]any {
	return map[string]any{
		"number": "5448280000000007", "holder_name": "ANA", "exp_month": 6, "exp_year": 2031, "cvv": "999",
	}
}

func TestCreatePixPayment_PendingStartsPollerWithWebhook(t *testing.T) {
	f := newFixture(t, testCompany())
	f.efi.chargeResult = &providers.Result{
		Status:       providers.StatusPending,
		NativeID:     "txid-1",
		PixCopyPaste: "000201...",
		QRCodeImage:  "qr/location",
		Raw:          json.RawMessage(`{"status":"ATIVA"}`),
	}

	res, err := f.svc.CreatePixPayment(t.Context(), &CreatePixRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-1",
		Amount:        decimal.NewFromFloat(25.50),
		WebhookURL:    "https://subscriber.example/hook",
	})
	require.NoError(t, err)
	require.False(t, res.AlreadyProcessed)
	require.Equal(t, types.PaymentStatusPending, res.Payment.Status)
	require.Equal(t, "txid-1", *res.Payment.ProviderNativeID)
	require.Equal(t, "000201...", *res.Payment.PixCopyPaste)
	require.Equal(t, []string{"txn-1"}, f.poller.started)
	require.Empty(t, f.notifier.events)
}

func TestCreatePixPayment_NoWebhookURLNoPoller(t *testing.T) {
	f := newFixture(t, testCompany())
	f.efi.chargeResult = &providers.Result{Status: providers.StatusPending, NativeID: "txid-2"}

	res, err := f.svc.CreatePixPayment(t.Context(), &CreatePixRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-2",
		Amount:        decimal.NewFromFloat(10),
	})
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusPending, res.Payment.Status)
	require.Empty(t, f.poller.started)
}

func TestCreatePixPayment_IdempotentReplaySkipsProvider(t *testing.T) {
	f := newFixture(t, testCompany())
	f.efi.chargeResult = &providers.Result{Status: providers.StatusPending, NativeID: "txid-3"}

	req := &CreatePixRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-3",
		Amount:        decimal.NewFromFloat(10),
	}
	first, err := f.svc.CreatePixPayment(t.Context(), req)
	require.NoError(t, err)
	require.False(t, first.AlreadyProcessed)

	second, err := f.svc.CreatePixPayment(t.Context(), req)
	require.NoError(t, err)
	require.True(t, second.AlreadyProcessed)
	require.Equal(t, first.Payment.ID, second.Payment.ID)
	require.Equal(t, 1, f.efi.chargeCalls)
}

func TestCreatePixPayment_ValidationLeavesNoRow(t *testing.T) {
	f := newFixture(t, testCompany())

	_, err := f.svc.CreatePixPayment(t.Context(), &CreatePixRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-4",
		Amount:        decimal.Zero,
	})
	require.Error(t, err)
	require.True(t, providers.IsValidation(err))
	require.Zero(t, f.efi.chargeCalls)
	_, err = f.payments.Get(t.Context(), "company-a", "txn-4")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreatePixPayment_MissingPixKeyRejected(t *testing.T) {
	company := testCompany()
	company.PixKey = nil
	f := newFixture(t, company)

	_, err := f.svc.CreatePixPayment(t.Context(), &CreatePixRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-5",
		Amount:        decimal.NewFromFloat(10),
	})
	require.Error(t, err)
	require.True(t, providers.IsValidation(err))
	require.Zero(t, f.efi.chargeCalls)
}

func TestCreatePixPayment_RejectedFinalizesFailed(t *testing.T) {
	f := newFixture(t, testCompany())
	f.efi.chargeErr = &providers.RejectedError{
		Provider: types.ProviderEfi,
		Reason:   providers.RejectReasonDeclined,
		Code:     "cobranca_invalida",
		Message:  "chave nao pertence ao recebedor",
	}

	res, err := f.svc.CreatePixPayment(t.Context(), &CreatePixRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-6",
		Amount:        decimal.NewFromFloat(10),
		WebhookURL:    "https://subscriber.example/hook",
	})
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusFailed, res.Payment.Status)
	require.Equal(t, "cobranca_invalida", res.ReturnCode)
	require.Len(t, f.notifier.events, 1)
	require.Equal(t, types.PaymentStatusFailed, f.notifier.events[0].Status)
	require.Empty(t, f.poller.started)
}

func TestCreatePixPayment_UnavailableLeavesPending(t *testing.T) {
	f := newFixture(t, testCompany())
	f.efi.chargeErr = &providers.UnavailableError{Provider: types.ProviderEfi}

	_, err := f.svc.CreatePixPayment(t.Context(), &CreatePixRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-7",
		Amount:        decimal.NewFromFloat(10),
	})
	require.Error(t, err)
	row, gerr := f.payments.Get(t.Context(), "company-a", "txn-7")
	require.NoError(t, gerr)
	require.Equal(t, types.PaymentStatusPending, row.Status)
	require.Empty(t, f.notifier.events)
}

func TestCreateCreditCardPayment_ApprovedSynchronously(t *testing.T) {
	f := newFixture(t, testCompany())
	f.rede.chargeResult = &providers.Result{
		Status:     providers.StatusApproved,
		NativeID:   "tid-1",
		ReturnCode: "00",
		Raw:        json.RawMessage(`{"returnCode":"00"}`),
	}

	res, err := f.svc.CreateCreditCardPayment(t.Context(), &CreateCardRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-8",
		Amount:        decimal.NewFromFloat(99.90),
		Installments:  3,
		Card:          cardFields(),
		WebhookURL:    "https://subscriber.example/hook",
	})
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusApproved, res.Payment.Status)
	require.Equal(t, "00", res.ReturnCode)
	require.Len(t, f.notifier.events, 1)
	require.Equal(t, types.PaymentStatusApproved, f.notifier.events[0].Status)
}

func TestCreateCreditCardPayment_DeclineFinalizesFailed(t *testing.T) {
	f := newFixture(t, testCompany())
	f.rede.chargeResult = &providers.Result{
		Status:        providers.StatusFailed,
		NativeID:      "tid-2",
		ReturnCode:    "105",
		ReturnMessage: "Transacao nao autorizada",
	}

	res, err := f.svc.CreateCreditCardPayment(t.Context(), &CreateCardRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-9",
		Amount:        decimal.NewFromFloat(10),
		Card:          cardFields(),
	})
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusFailed, res.Payment.Status)
	require.Equal(t, "105", res.ReturnCode)
	require.Equal(t, "Transacao nao autorizada", res.ReturnMessage)
}

func TestCreateCreditCardPayment_BadCardLeavesNoRow(t *testing.T) {
	f := newFixture(t, testCompany())

	fields := cardFields()
	delete(fields, "cvv")
	_, err := f.svc.CreateCreditCardPayment(t.Context(), &CreateCardRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-10",
		Amount:        decimal.NewFromFloat(10),
		Card:          fields,
	})
	require.Error(t, err)
	require.True(t, providers.IsValidation(err))
	require.Zero(t, f.rede.chargeCalls)
	_, err = f.payments.Get(t.Context(), "company-a", "txn-10")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateCreditCardPayment_VaultTokenResolved(t *testing.T) {
	f := newFixture(t, testCompany())
	require.NoError(t, f.svc.vault.Store(t.Context(), "company-a", "tok-1", cardFields()))
	f.rede.chargeResult = &providers.Result{Status: providers.StatusApproved, NativeID: "tid-3", ReturnCode: "00"}

	res, err := f.svc.CreateCreditCardPayment(t.Context(), &CreateCardRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-11",
		Amount:        decimal.NewFromFloat(10),
		CardToken:     "tok-1",
	})
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusApproved, res.Payment.Status)
}

func TestCreateCreditCardPayment_UnknownTokenRejected(t *testing.T) {
	f := newFixture(t, testCompany())

	_, err := f.svc.CreateCreditCardPayment(t.Context(), &CreateCardRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-12",
		Amount:        decimal.NewFromFloat(10),
		CardToken:     "missing",
	})
	require.Error(t, err)
	require.True(t, providers.IsValidation(err))
}

func TestCreateCreditCardPayment_AmbiguousAnswerStaysPending(t *testing.T) {
	f := newFixture(t, testCompany())
	f.rede.chargeErr = &providers.InconsistentError{Provider: types.ProviderRede, Detail: "garbage"}

	_, err := f.svc.CreateCreditCardPayment(t.Context(), &CreateCardRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-13",
		Amount:        decimal.NewFromFloat(10),
		Card:          cardFields(),
	})
	require.ErrorIs(t, err, ErrGatewayInconsistent)
	row, gerr := f.payments.Get(t.Context(), "company-a", "txn-13")
	require.NoError(t, gerr)
	require.Equal(t, types.PaymentStatusPending, row.Status)
}

func TestCreateCreditCardPayment_TooManyInstallments(t *testing.T) {
	f := newFixture(t, testCompany())

	_, err := f.svc.CreateCreditCardPayment(t.Context(), &CreateCardRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-14",
		Amount:        decimal.NewFromFloat(10),
		Installments:  13,
		Card:          cardFields(),
	})
	require.Error(t, err)
	require.True(t, providers.IsValidation(err))
}

func TestFinalizeFromProvider_ApprovesPendingAndNotifies(t *testing.T) {
	f := newFixture(t, testCompany())
	f.efi.chargeResult = &providers.Result{Status: providers.StatusPending, NativeID: "txid-15"}
	_, err := f.svc.CreatePixPayment(t.Context(), &CreatePixRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-15",
		Amount:        decimal.NewFromFloat(10),
		WebhookURL:    "https://subscriber.example/hook",
	})
	require.NoError(t, err)

	err = f.svc.FinalizeFromProvider(t.Context(), types.ProviderEfi, "txid-15", types.PaymentStatusApproved, json.RawMessage(`{"pix":[]}`))
	require.NoError(t, err)
	row, err := f.payments.Get(t.Context(), "company-a", "txn-15")
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusApproved, row.Status)

	// Replay of the same notification does not transition or notify again.
	notified := len(f.notifier.events)
	err = f.svc.FinalizeFromProvider(t.Context(), types.ProviderEfi, "txid-15", types.PaymentStatusApproved, json.RawMessage(`{"pix":[]}`))
	require.NoError(t, err)
	require.Len(t, f.notifier.events, notified)
}

func TestFinalizeFromProvider_RefundOnApprovedMarksRefunded(t *testing.T) {
	f := newFixture(t, testCompany())
	f.efi.chargeResult = &providers.Result{Status: providers.StatusPending, NativeID: "txid-16"}
	_, err := f.svc.CreatePixPayment(t.Context(), &CreatePixRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-16",
		Amount:        decimal.NewFromFloat(10),
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.FinalizeFromProvider(t.Context(), types.ProviderEfi, "txid-16", types.PaymentStatusApproved, nil))

	require.NoError(t, f.svc.FinalizeFromProvider(t.Context(), types.ProviderEfi, "txid-16", types.PaymentStatusCanceled, nil))
	row, err := f.payments.Get(t.Context(), "company-a", "txn-16")
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCanceled, row.Status)
	require.NotNil(t, row.RefundedBy)
	require.Equal(t, types.ProviderEfi, *row.RefundedBy)
}

func TestFinalizeFromProvider_WrongProviderRejected(t *testing.T) {
	f := newFixture(t, testCompany())
	f.efi.chargeResult = &providers.Result{Status: providers.StatusPending, NativeID: "txid-17"}
	_, err := f.svc.CreatePixPayment(t.Context(), &CreatePixRequest{
		CompanyID:     "company-a",
		TransactionID: "txn-17",
		Amount:        decimal.NewFromFloat(10),
	})
	require.NoError(t, err)

	err = f.svc.FinalizeFromProvider(t.Context(), types.ProviderAsaas, "txid-17", types.PaymentStatusApproved, nil)
	require.Error(t, err)
}
