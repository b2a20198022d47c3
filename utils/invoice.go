package utils

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
)

// bolt11 currency prefixes with the params zpay32 needs to decode them,
// longest prefixes first.
var invoiceNetworks = []struct {
	currency string
	params   *chaincfg.Params
}{
	{domain.CurrencyBitcoinRegtest, &chaincfg.RegressionNetParams},
	{domain.CurrencyBitcoinSignet, &chaincfg.SigNetParams},
	{domain.CurrencyBitcoinTestnet, &chaincfg.TestNet3Params},
	{domain.CurrencyBitcoin, &chaincfg.MainNetParams},
}

// InvoiceCurrency returns the BIP-173 currency code of a bolt11 invoice by
// looking at its human readable part.
func InvoiceCurrency(bolt11 string) (string, error) {
	invoice := strings.ToLower(strings.TrimSpace(bolt11))
	invoice = strings.TrimPrefix(invoice, "lightning:")

	sep := strings.LastIndex(invoice, "1")
	if !strings.HasPrefix(invoice, "ln") || sep < 2 {
		return "", fmt.Errorf("invalid bolt11 invoice")
	}
	hrp := invoice[2:sep]
	if i := strings.IndexAny(hrp, "0123456789"); i >= 0 {
		hrp = hrp[:i]
	}
	if hrp == "" {
		return "", fmt.Errorf("invalid bolt11 invoice: missing currency")
	}
	return hrp, nil
}

// DecodeInvoice decodes a bitcoin bolt11 invoice locally, without asking the
// node. Signature is left empty.
func DecodeInvoice(bolt11 string) (*domain.InvoiceDetail, error) {
	currency, err := InvoiceCurrency(bolt11)
	if err != nil {
		return nil, err
	}

	var params *chaincfg.Params
	for _, n := range invoiceNetworks {
		if n.currency == currency {
			params = n.params
			break
		}
	}
	if params == nil {
		return nil, fmt.Errorf("unsupported invoice currency %s", currency)
	}

	invoice := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(bolt11)), "lightning:")
	inv, err := zpay32.Decode(invoice, params)
	if err != nil {
		return nil, fmt.Errorf("failed to decode invoice: %w", err)
	}

	detail := &domain.InvoiceDetail{
		CreationTime:       inv.Timestamp,
		ExpirationTime:     inv.Timestamp.Add(inv.Expiry()),
		MinFinalCltvExpiry: uint32(inv.MinFinalCLTVExpiry()),
		Currency:           currency,
	}
	if inv.MilliSat != nil {
		detail.Amount = int64(*inv.MilliSat)
	}
	if inv.Description != nil {
		detail.Description = *inv.Description
	}
	if inv.Destination != nil {
		detail.Payee = hex.EncodeToString(inv.Destination.SerializeCompressed())
	}
	if inv.PaymentHash != nil {
		detail.PaymentHash = hex.EncodeToString(inv.PaymentHash[:])
	}
	return detail, nil
}

// UnixTime converts a unix timestamp to time, keeping the zero value for 0.
func UnixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// UnixNanoTime is UnixTime for timestamps in nanoseconds.
func UnixNanoTime(nsec int64) time.Time {
	if nsec <= 0 {
		return time.Time{}
	}
	return time.Unix(0, nsec)
}
