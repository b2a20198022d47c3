package lightningd

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/utils"
)

const stateNormal = "CHANNELD_NORMAL"

var channelStates = map[string]string{
	"OPENINGD":                  "Opening",
	"DUALOPEND_OPEN_INIT":       "Opening (dual funded)",
	"DUALOPEND_AWAITING_LOCKIN": "Awaiting lock-in (dual funded)",
	"CHANNELD_AWAITING_LOCKIN":  "Awaiting lock-in",
	"CHANNELD_AWAITING_SPLICE":  "Awaiting splice",
	stateNormal:                 "Normal",
	"CHANNELD_SHUTTING_DOWN":    "Shutting down",
	"CLOSINGD_SIGEXCHANGE":      "Exchanging closing signatures",
	"CLOSINGD_COMPLETE":         "Closing transaction broadcast",
	"AWAITING_UNILATERAL":       "Awaiting unilateral close",
	"FUNDING_SPEND_SEEN":        "Funding transaction spent",
	"ONCHAIN":                   "Closed on-chain",
}

// lightningd network names mapped to chain and network.
var networks = map[string][2]string{
	"bitcoin":          {"bitcoin", "mainnet"},
	"testnet":          {"bitcoin", "testnet"},
	"testnet4":         {"bitcoin", "testnet4"},
	"signet":           {"bitcoin", "signet"},
	"regtest":          {"bitcoin", "regtest"},
	"litecoin":         {"litecoin", "mainnet"},
	"litecoin-testnet": {"litecoin", "testnet"},
}

func currencyFromNetwork(network string) (string, error) {
	n, ok := networks[network]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownNetwork, network)
	}
	return domain.CurrencyFromNetwork(n[0], n[1])
}

func channelState(state string) string {
	if phrase, ok := channelStates[state]; ok {
		return phrase
	}
	return state
}

func toNodeInfo(info getInfoResponse) (domain.NodeInfo, error) {
	currency, err := currencyFromNetwork(info.Network)
	if err != nil {
		return domain.NodeInfo{}, err
	}
	addresses := make([]string, 0, len(info.Address))
	for _, a := range info.Address {
		addresses = append(addresses, net.JoinHostPort(a.Address, strconv.Itoa(a.Port)))
	}
	return domain.NodeInfo{
		ID:        info.ID,
		Alias:     info.Alias,
		Color:     domain.NormalizeColor(info.Color),
		Version:   info.Version,
		Currency:  currency,
		Addresses: addresses,
	}, nil
}

func toOnchainFunds(resp listFundsResponse) map[domain.Outpoint]domain.OnchainFunds {
	funds := make(map[domain.Outpoint]domain.OnchainFunds, len(resp.Outputs))
	for _, o := range resp.Outputs {
		if o.Status == "spent" {
			continue
		}
		amount := int64(o.AmountMsat)
		if amount == 0 {
			amount = domain.SatToMsat(o.Value)
		}
		funds[domain.Outpoint{TxID: o.TxID, Index: o.Output}] = domain.OnchainFunds{
			Amount: amount,
			// old nodes only list confirmed outputs and don't report a status
			Confirmed: o.Status == "" || o.Status == "confirmed",
		}
	}
	return funds
}

// toChannel computes the balances from the htlcs in flight. What is neither
// ours nor locked belongs to the peer.
func toChannel(peerID string, connected bool, c peerChannel) domain.Channel {
	var lockedIn, lockedOut int64
	for _, h := range c.HTLCs {
		amount := first(h.AmountMsat, h.Msatoshi)
		switch h.Direction {
		case "in":
			lockedIn += amount
		case "out":
			lockedOut += amount
		}
	}
	own := first(c.ToUsMsat, c.MsatoshiToUs)
	total := first(c.TotalMsat, c.MsatoshiTotal)

	channelID := c.ChannelID
	if channelID == "" {
		channelID = peerID
	}
	return domain.Channel{
		ChannelID:      domain.ChannelID(channelID),
		State:          channelState(c.State),
		Operational:    c.State == stateNormal && connected,
		OwnFunds:       own,
		LockedIncoming: lockedIn,
		LockedOutgoing: lockedOut,
		PeerFunds:      max(total-own-lockedIn-lockedOut, 0),
	}
}

func toInvoiceDetail(resp decodePayResponse) *domain.InvoiceDetail {
	created := utils.UnixTime(resp.CreatedAt)
	return &domain.InvoiceDetail{
		CreationTime:       created,
		ExpirationTime:     created.Add(time.Duration(resp.Expiry) * time.Second),
		MinFinalCltvExpiry: resp.MinFinalCltvExpiry,
		Amount:             first(resp.AmountMsat, resp.Msatoshi),
		Currency:           resp.Currency,
		Description:        resp.Description,
		Payee:              resp.Payee,
		PaymentHash:        resp.PaymentHash,
		Signature:          resp.Signature,
	}
}

func toPayment(p payment, currency string) domain.Payment {
	return domain.Payment{
		Label:           p.Label,
		Amount:          first(p.AmountMsat, p.Msatoshi),
		Currency:        currency,
		Timestamp:       utils.UnixTime(p.CreatedAt),
		Status:          domain.PaymentStatus(p.Status),
		Destination:     p.Destination,
		PaymentHash:     p.PaymentHash,
		PaymentPreimage: p.PaymentPreimage,
	}
}
