package domain

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceExpired InvoiceStatus = "expired"
)

// Invoice is an incoming payment request created by the node.
// Label is None for backends that can't assign or retrieve a caller-chosen
// label; Bolt11 is then the only way to correlate it with history.
type Invoice struct {
	Label  fn.Option[string]
	Status InvoiceStatus
	Bolt11 string
	Detail InvoiceDetail
}

// InvoiceDetail is the decoded content of a bolt11 payment code.
type InvoiceDetail struct {
	CreationTime       time.Time
	ExpirationTime     time.Time
	MinFinalCltvExpiry uint32
	Amount             int64 // mSat
	Currency           string
	Description        string
	Payee              string
	PaymentHash        string
	Signature          string
}

// Expired tells whether the invoice can no longer be paid at the given time.
func (d InvoiceDetail) Expired(now time.Time) bool {
	if d.ExpirationTime.IsZero() {
		return false
	}
	return !now.Before(d.ExpirationTime)
}
