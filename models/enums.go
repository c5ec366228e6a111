package models

import "strings"

// CheckoutState mirrors the Braintree transaction status vocabulary. The
// column stores whatever the gateway last reported; unrecognized statuses
// are kept verbatim and routed to the failure action by the mapping below.
type CheckoutState string

const (
	CheckoutStateAuthorized             CheckoutState = "authorized"
	CheckoutStateSubmittedForSettlement CheckoutState = "submitted_for_settlement"
	CheckoutStateSettling               CheckoutState = "settling"

	CheckoutStateAuthorizationExpired CheckoutState = "authorization_expired"
	CheckoutStateProcessorDeclined    CheckoutState = "processor_declined"
	CheckoutStateGatewayRejected      CheckoutState = "gateway_rejected"
	CheckoutStateFailed               CheckoutState = "failed"
	CheckoutStateVoided               CheckoutState = "voided"
	CheckoutStateSettled              CheckoutState = "settled"
	CheckoutStateSettlementDeclined   CheckoutState = "settlement_declined"
	CheckoutStateRefunded             CheckoutState = "refunded"
	CheckoutStateReleased             CheckoutState = "released"
)

// FinalCheckoutStates are terminal: once reached, the checkout is immutable
// and excluded from every future scan.
var FinalCheckoutStates = []CheckoutState{
	CheckoutStateAuthorizationExpired,
	CheckoutStateProcessorDeclined,
	CheckoutStateGatewayRejected,
	CheckoutStateFailed,
	CheckoutStateVoided,
	CheckoutStateSettled,
	CheckoutStateSettlementDeclined,
	CheckoutStateRefunded,
	CheckoutStateReleased,
}

func (s CheckoutState) IsFinal() bool {
	for _, f := range FinalCheckoutStates {
		if s == f {
			return true
		}
	}
	return false
}

// Advisory guards for operator actions issued against the gateway.
// Consulted by callers before void/settle/credit; not enforced transitions.

func (s CheckoutState) CanVoid() bool {
	return s == CheckoutStateAuthorized || s == CheckoutStateSubmittedForSettlement
}

func (s CheckoutState) CanSettle() bool {
	return s == CheckoutStateAuthorized
}

func (s CheckoutState) CanCredit() bool {
	return s == CheckoutStateSettled || s == CheckoutStateSettling
}

// PaymentState is the gateway-independent payment lifecycle.
type PaymentState string

const (
	PaymentStateCheckout  PaymentState = "checkout"
	PaymentStatePending   PaymentState = "pending"
	PaymentStateCompleted PaymentState = "completed"
	PaymentStateVoid      PaymentState = "void"
	PaymentStateFailed    PaymentState = "failed"
)

// PaymentAction is the operation applied to a payment in response to an
// observed checkout-state transition.
type PaymentAction string

const (
	PaymentActionPend     PaymentAction = "pend"
	PaymentActionVoid     PaymentAction = "void"
	PaymentActionComplete PaymentAction = "complete"
	PaymentActionFailure  PaymentAction = "failure"
)

// PaymentStatus maps a checkout state onto the payment lifecycle. Every
// decline/expiry/rejection collapses to failed so unknown gateway outcomes
// never leave a payment silently pending.
func (s CheckoutState) PaymentStatus() PaymentState {
	switch s {
	case CheckoutStateAuthorized, CheckoutStateSubmittedForSettlement, CheckoutStateSettling:
		return PaymentStatePending
	case CheckoutStateSettled:
		return PaymentStateCompleted
	case CheckoutStateVoided:
		return PaymentStateVoid
	default:
		return PaymentStateFailed
	}
}

// ActionForPaymentStatus is the fixed status->action table. Anything outside
// pending/void/completed is treated as a failure requiring investigation.
func ActionForPaymentStatus(status PaymentState) PaymentAction {
	return ActionForGatewayStatus(string(status))
}

// ActionForGatewayStatus maps a payment-status string to a payment action
// with a conservative default. The input is a payment status, never a raw
// transaction status: "settled" here would map to a failure.
func ActionForGatewayStatus(status string) PaymentAction {
	switch status {
	case "pending":
		return PaymentActionPend
	case "void":
		return PaymentActionVoid
	case "completed":
		return PaymentActionComplete
	default:
		return PaymentActionFailure
	}
}

// NormalizeCardType converts gateway card-brand labels to the local
// denormalized form. Unknown non-empty labels pass through lower-cased.
func NormalizeCardType(raw string) string {
	switch raw {
	case "":
		return ""
	case "AmericanExpress":
		return "american_express"
	case "Diners Club":
		return "diners_club"
	case "MasterCard":
		return "master"
	default:
		return strings.ToLower(raw)
	}
}
