package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/application"
	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/internal/interface/web/types"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// abortWithError maps the backend error kinds to status codes. Command
// failures carry a message meant for the user.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		status = http.StatusServiceUnavailable
	case domain.IsCommandFailed(err):
		status = http.StatusBadRequest
	default:
		log.WithError(err).Warnf("%s %s failed", c.Request.Method, c.Request.URL.Path)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toInfo(node application.NodeSummary, connected bool, nextPoll time.Time) types.Info {
	return types.Info{
		Connected: connected,
		Backend:   node.BackendName,
		Currency:  node.Currency,
		Links:     node.Links,
		NextPoll:  formatTime(nextPoll),
	}
}

func toOnchainFunds(funds map[domain.Outpoint]domain.OnchainFunds) []types.OnchainFunds {
	list := make([]types.OnchainFunds, 0, len(funds))
	for outpoint, f := range funds {
		list = append(list, types.OnchainFunds{
			Txid:      outpoint.TxID,
			Vout:      outpoint.Index,
			Amount:    f.Amount,
			Confirmed: f.Confirmed,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Txid != list[j].Txid {
			return list[i].Txid < list[j].Txid
		}
		return list[i].Vout < list[j].Vout
	})
	return list
}

func toChannels(channels []domain.Channel) []types.Channel {
	list := make([]types.Channel, 0, len(channels))
	for _, c := range channels {
		list = append(list, types.Channel{
			ChannelID:      string(c.ChannelID),
			State:          c.State,
			Operational:    c.Operational,
			OwnFunds:       c.OwnFunds,
			LockedIncoming: c.LockedIncoming,
			LockedOutgoing: c.LockedOutgoing,
			PeerFunds:      c.PeerFunds,
		})
	}
	return list
}

func toPeers(peers []domain.Peer) []types.Peer {
	list := make([]types.Peer, 0, len(peers))
	for _, p := range peers {
		list = append(list, types.Peer{
			PeerID:    p.PeerID,
			Alias:     p.Alias,
			Color:     p.Color,
			Connected: p.Connected,
			Channels:  toChannels(p.Channels),
		})
	}
	return list
}

func toInvoiceDetail(d domain.InvoiceDetail) types.InvoiceDetail {
	return types.InvoiceDetail{
		CreatedAt:          formatTime(d.CreationTime),
		ExpiresAt:          formatTime(d.ExpirationTime),
		MinFinalCltvExpiry: d.MinFinalCltvExpiry,
		Amount:             d.Amount,
		Currency:           d.Currency,
		Description:        d.Description,
		Payee:              d.Payee,
		PaymentHash:        d.PaymentHash,
	}
}

func toInvoices(invoices []domain.Invoice) []types.Invoice {
	list := make([]types.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		invoice := types.Invoice{
			Status: string(inv.Status),
			Bolt11: inv.Bolt11,
			Detail: toInvoiceDetail(inv.Detail),
		}
		inv.Label.WhenSome(func(label string) {
			invoice.Label = &label
		})
		list = append(list, invoice)
	}
	return list
}

func toPayments(payments []domain.Payment) []types.Payment {
	list := make([]types.Payment, 0, len(payments))
	for _, p := range payments {
		list = append(list, types.Payment{
			Label:           p.Label,
			Amount:          p.Amount,
			Currency:        p.Currency,
			Date:            formatTime(p.Timestamp),
			Status:          string(p.Status),
			Destination:     p.Destination,
			PaymentHash:     p.PaymentHash,
			PaymentPreimage: p.PaymentPreimage,
		})
	}
	return list
}

func toSnapshot(s application.Snapshot, nextPoll time.Time) types.Snapshot {
	return types.Snapshot{
		Info: toInfo(s.Node, s.Connected, nextPoll),
		Funds: types.Funds{
			Onchain:  toOnchainFunds(s.OnchainFunds),
			Channels: toChannels(s.Channels),
		},
		Peers:    toPeers(s.Peers),
		Invoices: toInvoices(s.Invoices),
		Payments: toPayments(s.Payments),
	}
}

// commandResult keeps protobuf replies in their canonical json form.
func commandResult(resp any) (any, error) {
	msg, ok := resp.(proto.Message)
	if !ok {
		return resp, nil
	}
	data, err := protojson.MarshalOptions{EmitUnpopulated: true}.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
