package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/commerce_backend/braintree"
	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/workflow"
)

type fakeGateway struct {
	transactions map[string]braintree.Transaction
	errs         map[string]error
	calls        map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		transactions: map[string]braintree.Transaction{},
		errs:         map[string]error{},
		calls:        map[string]int{},
	}
}

func (g *fakeGateway) FindTransaction(_ context.Context, transactionId string) (*braintree.Transaction, error) {
	g.calls[transactionId]++
	if err, ok := g.errs[transactionId]; ok {
		return nil, err
	}
	txn, ok := g.transactions[transactionId]
	if !ok {
		return nil, braintree.ErrTransactionNotFound
	}
	return &txn, nil
}

func setupIntegrationDB(t *testing.T) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "commerce_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
}

func seedCheckout(t *testing.T, state models.CheckoutState, txnId string, paypalEmail string, paymentState models.PaymentState, orderTotal, paymentAmount string) (*models.Checkout, *models.Payment, *models.Order) {
	t.Helper()
	db := config.GetDB()

	order := models.Order{Number: "ORD-" + txnId, Total: mustDecimal(t, orderTotal)}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}

	checkout := models.Checkout{State: state, TransactionId: txnId}
	if paypalEmail != "" {
		checkout.PayPalEmail = &paypalEmail
	}
	if err := db.Create(&checkout).Error; err != nil {
		t.Fatalf("create checkout: %v", err)
	}

	payment := models.Payment{
		OrderId:    order.ID,
		CheckoutId: &checkout.ID,
		State:      paymentState,
		Amount:     mustDecimal(t, paymentAmount),
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}
	checkout.Payment = &payment
	return &checkout, &payment, &order
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return v
}

// Regression: the scan transitions exactly the drifted records, isolates
// gateway failures per record, never reselects FINAL checkouts, and a
// re-run with no gateway-side changes reports zero changed.
func TestUpdateStatesScan_Regression(t *testing.T) {
	setupIntegrationDB(t)
	ctx := context.Background()
	db := config.GetDB()
	logger := logrus.New()

	drifted, driftedPayment, _ := seedCheckout(t, models.CheckoutStateAuthorized, "txn-drift", "", models.PaymentStateCheckout, "100", "100")
	seedCheckout(t, models.CheckoutStateAuthorized, "txn-down", "", models.PaymentStateCheckout, "50", "50")
	final, _, _ := seedCheckout(t, models.CheckoutStateVoided, "txn-final", "", models.PaymentStateVoid, "20", "20")

	gw := newFakeGateway()
	gw.transactions["txn-drift"] = braintree.Transaction{Id: "txn-drift", Status: "settled", Amount: mustDecimal(t, "100")}
	gw.errs["txn-down"] = braintree.ErrGatewayUnavailable
	gw.transactions["txn-final"] = braintree.Transaction{Id: "txn-final", Status: "settled"}

	run := models.ReconciliationRun{Status: models.ReconRunStatusRunning, TriggeredBy: models.ReconTriggeredManual}
	if err := db.Create(&run).Error; err != nil {
		t.Fatalf("create run: %v", err)
	}

	result, err := workflow.ProcessUpdateStates(ctx, db, logger, gw, run.ID)
	if err != nil {
		t.Fatalf("ProcessUpdateStates: %v", err)
	}
	if result.Changed != 1 || result.Unchanged != 0 || result.Failed != 1 {
		t.Fatalf("first scan: %+v, want changed=1 unchanged=0 failed=1", result)
	}

	var reloaded models.Checkout
	if err := db.Take(&reloaded, drifted.ID).Error; err != nil {
		t.Fatalf("reload checkout: %v", err)
	}
	if reloaded.State != models.CheckoutStateSettled {
		t.Fatalf("drifted checkout state = %s, want settled", reloaded.State)
	}
	var reloadedPayment models.Payment
	if err := db.Take(&reloadedPayment, driftedPayment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if reloadedPayment.State != models.PaymentStateCompleted {
		t.Fatalf("payment state = %s, want completed (complete action applied once)", reloadedPayment.State)
	}

	// Gateway failure surfaced as a retryable run error, record untouched.
	var runErrs []models.ReconciliationError
	if err := db.Where("run_id = ?", run.ID).Find(&runErrs).Error; err != nil {
		t.Fatalf("load run errors: %v", err)
	}
	if len(runErrs) != 1 || runErrs[0].ErrorCode != "gateway_unavailable" || !runErrs[0].Retryable {
		t.Fatalf("run errors = %+v, want one retryable gateway_unavailable", runErrs)
	}

	// FINAL checkout is never fetched, regardless of gateway drift.
	if gw.calls["txn-final"] != 0 {
		t.Fatalf("final checkout was fetched %d times", gw.calls["txn-final"])
	}
	var reloadedFinal models.Checkout
	if err := db.Take(&reloadedFinal, final.ID).Error; err != nil {
		t.Fatalf("reload final checkout: %v", err)
	}
	if reloadedFinal.State != models.CheckoutStateVoided {
		t.Fatalf("final checkout mutated to %s", reloadedFinal.State)
	}

	// Idempotence: the settled record is FINAL now; only the failing record
	// is reselected and it fails again without affecting the rest.
	result, err = workflow.ProcessUpdateStates(ctx, db, logger, gw, run.ID)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if result.Changed != 0 || result.Failed != 1 {
		t.Fatalf("second scan: %+v, want changed=0 failed=1", result)
	}
	if err := db.Take(&reloadedPayment, driftedPayment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if reloadedPayment.State != models.PaymentStateCompleted {
		t.Fatalf("payment received a second action, state = %s", reloadedPayment.State)
	}
}

// Regression: recovery re-verifies at the gateway, promotes to completed
// only when order total, payment amount and gateway amount all agree, and
// requests a shipment resync either way.
func TestFailedOrderRecovery_Regression(t *testing.T) {
	setupIntegrationDB(t)
	ctx := context.Background()
	db := config.GetDB()
	logger := logrus.New()

	_, mismatchPayment, mismatchOrder := seedCheckout(t, models.CheckoutStateSettled, "txn-mismatch", "buyer-a@example.com", models.PaymentStateFailed, "100", "100")
	_, matchPayment, matchOrder := seedCheckout(t, models.CheckoutStateSettled, "txn-match", "buyer-b@example.com", models.PaymentStateFailed, "75", "75")
	_, healthyPayment, _ := seedCheckout(t, models.CheckoutStateSettled, "txn-healthy", "buyer-c@example.com", models.PaymentStateCompleted, "10", "10")

	gw := newFakeGateway()
	gw.transactions["txn-mismatch"] = braintree.Transaction{Id: "txn-mismatch", Status: "settled", Amount: mustDecimal(t, "95")}
	gw.transactions["txn-match"] = braintree.Transaction{Id: "txn-match", Status: "settled", Amount: mustDecimal(t, "75")}

	run := models.ReconciliationRun{Status: models.ReconRunStatusRunning, TriggeredBy: models.ReconTriggeredManual}
	if err := db.Create(&run).Error; err != nil {
		t.Fatalf("create run: %v", err)
	}

	if failed := workflow.ProcessFailedOrderRecovery(ctx, db, logger, gw, run.ID); failed != 0 {
		t.Fatalf("recovery reported %d failures", failed)
	}

	// Amount mismatch: pending, never completed, resync still requested.
	var p models.Payment
	if err := db.Take(&p, mismatchPayment.ID).Error; err != nil {
		t.Fatalf("reload mismatch payment: %v", err)
	}
	if p.State != models.PaymentStatePending {
		t.Fatalf("mismatch payment = %s, want pending", p.State)
	}
	var resyncCount int64
	if err := db.Model(&models.ShipmentSyncRecord{}).
		Where("order_id = ? AND reason = ?", mismatchOrder.ID, "payment_recovered").
		Count(&resyncCount).Error; err != nil {
		t.Fatalf("count resync records: %v", err)
	}
	if resyncCount != 1 {
		t.Fatalf("mismatch order resync records = %d, want 1", resyncCount)
	}

	// Consistent amounts: completed, resync requested.
	if err := db.Take(&p, matchPayment.ID).Error; err != nil {
		t.Fatalf("reload match payment: %v", err)
	}
	if p.State != models.PaymentStateCompleted {
		t.Fatalf("match payment = %s, want completed", p.State)
	}
	if err := db.Model(&models.ShipmentSyncRecord{}).
		Where("order_id = ?", matchOrder.ID).
		Count(&resyncCount).Error; err != nil {
		t.Fatalf("count resync records: %v", err)
	}
	if resyncCount != 1 {
		t.Fatalf("match order resync records = %d, want 1", resyncCount)
	}

	// No drift signature: untouched, gateway never consulted.
	if err := db.Take(&p, healthyPayment.ID).Error; err != nil {
		t.Fatalf("reload healthy payment: %v", err)
	}
	if p.State != models.PaymentStateCompleted {
		t.Fatalf("healthy payment mutated to %s", p.State)
	}
	if gw.calls["txn-healthy"] != 0 {
		t.Fatalf("healthy candidate was re-fetched %d times", gw.calls["txn-healthy"])
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("commerce-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=commerce_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
