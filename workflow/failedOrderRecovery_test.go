package workflow

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestAmountsConsistent(t *testing.T) {
	cases := []struct {
		name    string
		order   string
		payment string
		gateway string
		want    bool
	}{
		{"all equal", "100", "100", "100", true},
		{"equal across scales", "100", "100.00", "100.0000", true},
		{"gateway short", "100", "100", "95", false},
		{"payment drifted", "100", "99.99", "100", false},
		{"order differs", "105", "100", "100", false},
		{"all zero", "0", "0", "0", true},
	}
	for _, c := range cases {
		got := AmountsConsistent(d(c.order), d(c.payment), d(c.gateway))
		if got != c.want {
			t.Errorf("%s: AmountsConsistent(%s, %s, %s) = %v, want %v",
				c.name, c.order, c.payment, c.gateway, got, c.want)
		}
	}
}

func TestRecoverCandidateSkipsWithoutDriftSignature(t *testing.T) {
	// Recovery only repairs the drift signature: payment failed locally,
	// checkout settled. Anything else returns before the gateway or the
	// database is touched (the nil handle would panic otherwise).
	gw := &stubGateway{statuses: map[string]string{"txn-1": "settled"}}
	logger := logrus.New()

	noPayment := &models.Checkout{ID: 1, State: models.CheckoutStateSettled, TransactionId: "txn-1"}
	if err := recoverCandidate(context.Background(), nil, logger, gw, noPayment); err != nil {
		t.Fatalf("candidate without payment: %v", err)
	}

	healthy := &models.Checkout{
		ID: 2, State: models.CheckoutStateSettled, TransactionId: "txn-1",
		Payment: &models.Payment{ID: 2, State: models.PaymentStateCompleted},
	}
	if err := recoverCandidate(context.Background(), nil, logger, gw, healthy); err != nil {
		t.Fatalf("candidate with completed payment: %v", err)
	}

	notSettled := &models.Checkout{
		ID: 3, State: models.CheckoutStateSettling, TransactionId: "txn-1",
		Payment: &models.Payment{ID: 3, State: models.PaymentStateFailed},
	}
	if err := recoverCandidate(context.Background(), nil, logger, gw, notSettled); err != nil {
		t.Fatalf("candidate not settled locally: %v", err)
	}

	if gw.calls != 0 {
		t.Fatalf("gateway calls = %d, want 0 (skips must not re-fetch)", gw.calls)
	}
}

func TestRecoverCandidateGatewayFailureIsSurfaced(t *testing.T) {
	gw := &stubGateway{}
	drift := &models.Checkout{
		ID: 1, State: models.CheckoutStateSettled, TransactionId: "missing",
		Payment: &models.Payment{ID: 1, State: models.PaymentStateFailed},
	}
	if err := recoverCandidate(context.Background(), nil, logrus.New(), gw, drift); err == nil {
		t.Fatal("expected the re-fetch failure to propagate")
	}
	if drift.Payment.State != models.PaymentStateFailed {
		t.Fatalf("payment mutated to %s", drift.Payment.State)
	}
}
