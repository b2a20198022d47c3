package lnd

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/utils"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/lnrpc"
)

const (
	stateActive            = "Active"
	stateInactive          = "Inactive"
	statePendingOpen       = "Pending open"
	stateWaitingClose      = "Waiting for close transaction confirmation"
	statePendingForceClose = "Pending force close"
)

func toNodeInfo(info *lnrpc.GetInfoResponse) (domain.NodeInfo, error) {
	if len(info.GetChains()) == 0 {
		return domain.NodeInfo{}, domain.ErrUnknownNetwork
	}
	chain := info.GetChains()[0]
	currency, err := domain.CurrencyFromNetwork(chain.GetChain(), chain.GetNetwork())
	if err != nil {
		return domain.NodeInfo{}, err
	}

	addresses := make([]string, 0, len(info.GetUris()))
	for _, uri := range info.GetUris() {
		if _, addr, ok := strings.Cut(uri, "@"); ok {
			addresses = append(addresses, addr)
		}
	}
	return domain.NodeInfo{
		ID:        info.GetIdentityPubkey(),
		Alias:     info.GetAlias(),
		Color:     domain.NormalizeColor(info.GetColor()),
		Version:   info.GetVersion(),
		Currency:  currency,
		Addresses: addresses,
	}, nil
}

// toOnchainFunds turns the wallet balance into pseudo outputs, lnd doesn't
// list individual outputs here.
func toOnchainFunds(resp *lnrpc.WalletBalanceResponse) map[domain.Outpoint]domain.OnchainFunds {
	funds := make(map[domain.Outpoint]domain.OnchainFunds)
	if resp.GetConfirmedBalance() != 0 {
		funds[domain.PseudoOutpoint(true)] = domain.OnchainFunds{
			Amount:    domain.SatToMsat(resp.GetConfirmedBalance()),
			Confirmed: true,
		}
	}
	if resp.GetUnconfirmedBalance() != 0 {
		funds[domain.PseudoOutpoint(false)] = domain.OnchainFunds{
			Amount: domain.SatToMsat(resp.GetUnconfirmedBalance()),
		}
	}
	return funds
}

func toChannel(c *lnrpc.Channel) domain.Channel {
	var lockedIn, lockedOut int64
	for _, htlc := range c.GetPendingHtlcs() {
		if htlc.GetIncoming() {
			lockedIn += domain.SatToMsat(htlc.GetAmount())
		} else {
			lockedOut += domain.SatToMsat(htlc.GetAmount())
		}
	}
	state := stateInactive
	if c.GetActive() {
		state = stateActive
	}
	return domain.Channel{
		ChannelID:      domain.ChannelID(c.GetChannelPoint()),
		State:          state,
		Operational:    c.GetActive(),
		OwnFunds:       domain.SatToMsat(c.GetLocalBalance()),
		LockedIncoming: lockedIn,
		LockedOutgoing: lockedOut,
		PeerFunds:      domain.SatToMsat(c.GetRemoteBalance()),
	}
}

func toPendingChannel(c *lnrpc.PendingChannelsResponse_PendingChannel, state string) domain.Channel {
	return domain.Channel{
		ChannelID: domain.ChannelID(c.GetChannelPoint()),
		State:     state,
		OwnFunds:  domain.SatToMsat(c.GetLocalBalance()),
		PeerFunds: domain.SatToMsat(c.GetRemoteBalance()),
	}
}

// toChannelRecords groups open and pending channels by peer.
func toChannelRecords(
	open *lnrpc.ListChannelsResponse, pending *lnrpc.PendingChannelsResponse,
) []domain.PeerRecord {
	records := make([]domain.PeerRecord, 0)
	add := func(peer string, channel domain.Channel) {
		records = append(records, domain.PeerRecord{
			PeerID: peer, Channels: []domain.Channel{channel},
		})
	}

	for _, c := range open.GetChannels() {
		add(c.GetRemotePubkey(), toChannel(c))
	}
	for _, c := range pending.GetPendingOpenChannels() {
		add(c.GetChannel().GetRemoteNodePub(), toPendingChannel(c.GetChannel(), statePendingOpen))
	}
	for _, c := range pending.GetWaitingCloseChannels() {
		add(c.GetChannel().GetRemoteNodePub(), toPendingChannel(c.GetChannel(), stateWaitingClose))
	}
	for _, c := range pending.GetPendingForceClosingChannels() {
		add(c.GetChannel().GetRemoteNodePub(), toPendingChannel(c.GetChannel(), statePendingForceClose))
	}
	return records
}

func toInvoiceDetail(bolt11 string, payReq *lnrpc.PayReq) *domain.InvoiceDetail {
	// lnd doesn't report the currency, it's in the invoice prefix
	currency, _ := utils.InvoiceCurrency(bolt11)
	created := utils.UnixTime(payReq.GetTimestamp())
	return &domain.InvoiceDetail{
		CreationTime:       created,
		ExpirationTime:     created.Add(time.Duration(payReq.GetExpiry()) * time.Second),
		MinFinalCltvExpiry: uint32(payReq.GetCltvExpiry()),
		Amount:             payReq.GetNumMsat(),
		Currency:           currency,
		Description:        payReq.GetDescription(),
		Payee:              payReq.GetDestination(),
		PaymentHash:        payReq.GetPaymentHash(),
	}
}

// fallbackInvoiceDetail builds the detail out of the invoice listing, for
// payment requests that can't be decoded.
func fallbackInvoiceDetail(inv *lnrpc.Invoice, currency string) *domain.InvoiceDetail {
	created := utils.UnixTime(inv.GetCreationDate())
	return &domain.InvoiceDetail{
		CreationTime:       created,
		ExpirationTime:     created.Add(time.Duration(inv.GetExpiry()) * time.Second),
		MinFinalCltvExpiry: uint32(inv.GetCltvExpiry()),
		Amount:             inv.GetValueMsat(),
		Currency:           currency,
		Description:        inv.GetMemo(),
		PaymentHash:        hex.EncodeToString(inv.GetRHash()),
	}
}

func toInvoice(inv *lnrpc.Invoice, detail *domain.InvoiceDetail, now time.Time) domain.Invoice {
	var status domain.InvoiceStatus
	switch inv.GetState() {
	case lnrpc.Invoice_SETTLED:
		status = domain.InvoicePaid
	case lnrpc.Invoice_OPEN:
		status = domain.InvoiceUnpaid
		if detail.Expired(now) {
			status = domain.InvoiceExpired
		}
	default:
		status = domain.InvoiceStatus(strings.ToLower(inv.GetState().String()))
	}
	return domain.Invoice{
		Label:  fn.None[string](),
		Status: status,
		Bolt11: inv.GetPaymentRequest(),
		Detail: *detail,
	}
}

func toPayment(p *lnrpc.Payment, currency string) domain.Payment {
	var status domain.PaymentStatus
	switch p.GetStatus() {
	case lnrpc.Payment_SUCCEEDED:
		status = domain.PaymentComplete
	case lnrpc.Payment_FAILED:
		status = domain.PaymentFailed
	case lnrpc.Payment_IN_FLIGHT:
		status = domain.PaymentPending
	default:
		status = domain.PaymentStatus(strings.ToLower(p.GetStatus().String()))
	}

	payment := domain.Payment{
		Amount:      p.GetValueMsat(),
		Currency:    currency,
		Timestamp:   utils.UnixNanoTime(p.GetCreationTimeNs()),
		Status:      status,
		Destination: paymentDestination(p),
		PaymentHash: p.GetPaymentHash(),
	}
	if status == domain.PaymentComplete {
		payment.PaymentPreimage = p.GetPaymentPreimage()
	}
	return payment
}

// paymentDestination is the last hop of a route that was tried, or the payee
// of the payment request when lnd kept no route.
func paymentDestination(p *lnrpc.Payment) string {
	for _, htlc := range p.GetHtlcs() {
		hops := htlc.GetRoute().GetHops()
		if len(hops) > 0 {
			return hops[len(hops)-1].GetPubKey()
		}
	}
	if p.GetPaymentRequest() == "" {
		return ""
	}
	detail, err := utils.DecodeInvoice(p.GetPaymentRequest())
	if err != nil {
		return ""
	}
	return detail.Payee
}
