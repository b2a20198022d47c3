package domain

import "time"

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentComplete PaymentStatus = "complete"
	PaymentFailed   PaymentStatus = "failed"
)

type Payment struct {
	Label       string
	Amount      int64 // mSat
	Currency    string
	Timestamp   time.Time
	Status      PaymentStatus
	Destination string
	PaymentHash string
	// empty until the payment is settled
	PaymentPreimage string
}
