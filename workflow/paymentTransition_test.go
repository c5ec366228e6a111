package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/commerce_backend/braintree"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
)

// NOTE: These tests are DB-free. They drive the real reconciliation
// functions through the paths that decide before touching the database:
// equal states, gateway failures, missing payments, non-drift candidates.
// The DB-backed paths are covered by reconciliation_regression_test.go
// (INTEGRATION_TESTS=1, requires docker).

type stubGateway struct {
	statuses map[string]string
	errs     map[string]error
	calls    int
}

func (g *stubGateway) FindTransaction(_ context.Context, transactionId string) (*braintree.Transaction, error) {
	g.calls++
	if err, ok := g.errs[transactionId]; ok {
		return nil, err
	}
	status, ok := g.statuses[transactionId]
	if !ok {
		return nil, braintree.ErrTransactionNotFound
	}
	return &braintree.Transaction{Id: transactionId, Status: status}, nil
}

func TestApplyCheckoutStateChangeNoOpOnEqualStates(t *testing.T) {
	checkout := &models.Checkout{ID: 1, State: models.CheckoutStateAuthorized}
	action, applied, err := ApplyCheckoutStateChange(nil, checkout, models.CheckoutStateAuthorized, models.CheckoutStateAuthorized)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied || action != "" {
		t.Fatalf("equal states must be a no-op, got action=%q applied=%v", action, applied)
	}
}

func TestApplyCheckoutStateChangePaymentAlreadyAtTarget(t *testing.T) {
	// Re-observing a transition whose action already took effect must not
	// rewrite the payment. ApplyAction short-circuits at the target state,
	// so the nil transaction handle is never touched.
	payment := &models.Payment{ID: 7, State: models.PaymentStateCompleted}
	checkout := &models.Checkout{ID: 1, State: models.CheckoutStateSettled, Payment: payment}

	action, applied, err := ApplyCheckoutStateChange(nil, checkout, models.CheckoutStateSubmittedForSettlement, models.CheckoutStateSettled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action != models.PaymentActionComplete {
		t.Fatalf("action = %s, want complete", action)
	}
	if !applied {
		t.Fatal("transition must report the action")
	}
	if payment.State != models.PaymentStateCompleted {
		t.Fatalf("payment state mutated to %s", payment.State)
	}
}

func TestReconcileCheckoutNoChangeIsReadOnly(t *testing.T) {
	// When the gateway reports the stored state, the record is untouched:
	// no transaction is opened (the nil handle would panic if it were).
	gw := &stubGateway{statuses: map[string]string{"txn-1": "authorized"}}
	checkout := &models.Checkout{ID: 1, State: models.CheckoutStateAuthorized, TransactionId: "txn-1"}

	changed, err := ReconcileCheckout(context.Background(), nil, logrus.New(), gw, checkout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatal("matching remote state must report unchanged")
	}
	if gw.calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", gw.calls)
	}
	if checkout.State != models.CheckoutStateAuthorized {
		t.Fatalf("state mutated to %s", checkout.State)
	}
}

func TestReconcileCheckoutGatewayFailureLeavesRecordUntouched(t *testing.T) {
	gw := &stubGateway{errs: map[string]error{"txn-1": braintree.ErrGatewayUnavailable}}
	checkout := &models.Checkout{ID: 1, State: models.CheckoutStateAuthorized, TransactionId: "txn-1"}

	changed, err := ReconcileCheckout(context.Background(), nil, logrus.New(), gw, checkout)
	if !errors.Is(err, braintree.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if changed {
		t.Fatal("failed fetch must not report a change")
	}
	if checkout.State != models.CheckoutStateAuthorized {
		t.Fatalf("state mutated to %s", checkout.State)
	}
}
