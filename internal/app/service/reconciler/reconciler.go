// Package reconciler polls providers for pending-payment outcomes. One
// goroutine per pending payment, started at most once per payment, with a
// hard deadline after which the payment is left pending for operators.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/brisapay/gateway/internal/app/store"
	"github.com/brisapay/gateway/internal/app/service/notifier"
	"github.com/brisapay/gateway/internal/models"
	"github.com/brisapay/gateway/internal/platform/providers"
	cfgpkg "github.com/brisapay/gateway/pkg/config"
	"github.com/brisapay/gateway/pkg/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Clock abstracts time for the poll loop so tests can run it instantly.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type Registry struct {
	log      *zap.SugaredLogger
	payments store.PaymentStore
	notifier *notifier.Dispatcher
	clock    Clock
	cfg      cfgpkg.PaymentsConfig

	mu      sync.Mutex
	running map[string]chan struct{}
}

func New(log *zap.SugaredLogger, payments store.PaymentStore, dispatcher *notifier.Dispatcher, cfg *cfgpkg.Config) *Registry {
	return &Registry{
		log:      log,
		payments: payments,
		notifier: dispatcher,
		clock:    realClock{},
		cfg:      cfg.Payments,
		running:  make(map[string]chan struct{}),
	}
}

func pollKey(p *models.Payment) string {
	return p.CompanyID + "/" + p.TransactionID
}

// Start launches the poll loop for a payment. Returns false when a loop for
// this payment is already running. The loop outlives the request context.
func (r *Registry) Start(ctx context.Context, p *models.Payment, client providers.Client) bool {
	key := pollKey(p)
	r.mu.Lock()
	if _, ok := r.running[key]; ok {
		r.mu.Unlock()
		return false
	}
	done := make(chan struct{})
	r.running[key] = done
	r.mu.Unlock()

	go func() {
		defer func() {
			close(done)
			r.mu.Lock()
			delete(r.running, key)
			r.mu.Unlock()
		}()
		r.run(context.WithoutCancel(ctx), p, client)
	}()
	return true
}

// Await blocks until the loop for a payment finishes. Test helper.
func (r *Registry) Await(p *models.Payment) {
	r.mu.Lock()
	done, ok := r.running[pollKey(p)]
	r.mu.Unlock()
	if ok {
		<-done
	}
}

// interval widens the poll cadence once the payment has been pending for a
// while; most pix charges settle in the first minutes or not at all.
func (r *Registry) interval(elapsed time.Duration) time.Duration {
	if elapsed >= r.cfg.PollWidenAfter {
		return r.cfg.PollIntervalWide
	}
	return r.cfg.PollInterval
}

func (r *Registry) run(ctx context.Context, p *models.Payment, client providers.Client) {
	l := r.log.With("company_id", p.CompanyID, "transaction_id", p.TransactionID, "provider", p.Provider)
	start := r.clock.Now()
	nativeID := p.TransactionID
	if p.ProviderNativeID != nil && *p.ProviderNativeID != "" {
		nativeID = *p.ProviderNativeID
	}

	for {
		elapsed := r.clock.Now().Sub(start)
		if elapsed >= r.cfg.PollDeadline {
			// Give up and leave the payment pending. No webhook goes out;
			// the subscriber can reconcile through the status endpoint.
			l.Warnw("poll deadline reached, payment left pending", "elapsed", elapsed)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(r.interval(elapsed)):
		}
		metrics.ReconcilerTicks.Inc()

		result, err := client.GetStatus(ctx, p.CompanyID, nativeID)
		if err != nil {
			// Transient by assumption: the deadline bounds how long we retry.
			l.Warnw("status poll failed", "error", err)
			continue
		}
		if !result.Status.Terminal() {
			continue
		}

		status := result.Status.PaymentStatus()
		row, updated, err := r.payments.Finalize(ctx, p.CompanyID, p.TransactionID, status, datatypes.JSON(result.Raw))
		if err != nil {
			l.Errorw("finalize after poll failed", "status", status, "error", err)
			continue
		}
		if !updated {
			// Another path won the transition. Nothing left for us.
			l.Infow("payment already finalized elsewhere", "status", row.Status)
			return
		}

		metrics.PaymentsFinalized.WithLabelValues(string(p.Provider), string(status), "poll").Inc()
		l.Infow("payment finalized by poll", "status", status)
		var webhookURL string
		if p.WebhookURL != nil {
			webhookURL = *p.WebhookURL
		}
		r.notifier.Notify(ctx, p.CompanyID, webhookURL, &notifier.Event{
			TransactionID: p.TransactionID,
			Status:        status,
			Provider:      p.Provider,
			Txid:          nativeID,
			Payload:       result.Raw,
			DataMarketing: []byte(row.DataMarketing),
		})
		return
	}
}

// Module exposes the reconciler via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
