package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// formatAmount shows a mSat amount in the default unit of the currency.
func formatAmount(amount int64, currency string) string {
	info, ok := domain.Currencies[currency]
	if !ok {
		return fmt.Sprintf("%d mSat", amount)
	}
	multiplier := info.Multipliers[info.DefaultUnit]
	value := strconv.FormatFloat(float64(amount)/float64(multiplier), 'f', -1, 64)
	return value + " " + info.DefaultUnit
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func newTable(out io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func printOnchainFunds(
	out io.Writer, funds map[domain.Outpoint]domain.OnchainFunds, currency string,
) int64 {
	outpoints := make([]domain.Outpoint, 0, len(funds))
	for outpoint := range funds {
		outpoints = append(outpoints, outpoint)
	}
	sort.Slice(outpoints, func(i, j int) bool {
		if outpoints[i].TxID != outpoints[j].TxID {
			return outpoints[i].TxID < outpoints[j].TxID
		}
		return outpoints[i].Index < outpoints[j].Index
	})

	var total int64
	t := newTable(out, "Outpoint", "Amount", "Confirmed")
	for _, outpoint := range outpoints {
		f := funds[outpoint]
		total += f.Amount
		t.AppendRow(table.Row{
			fmt.Sprintf("%s:%d", outpoint.TxID, outpoint.Index),
			formatAmount(f.Amount, currency),
			f.Confirmed,
		})
	}
	t.AppendFooter(table.Row{"Total", formatAmount(total, currency), ""})
	t.Render()
	return total
}

func printChannels(out io.Writer, channels []domain.Channel, currency string) int64 {
	var total int64
	t := newTable(out, "Channel", "State", "Own", "Locked in", "Locked out", "Peer")
	for _, c := range channels {
		total += c.OwnFunds
		state := c.State
		if !c.Operational {
			state += " (not operational)"
		}
		t.AppendRow(table.Row{
			c.ChannelID, state,
			formatAmount(c.OwnFunds, currency),
			formatAmount(c.LockedIncoming, currency),
			formatAmount(c.LockedOutgoing, currency),
			formatAmount(c.PeerFunds, currency),
		})
	}
	t.AppendFooter(table.Row{"Total", "", formatAmount(total, currency), "", "", ""})
	t.Render()
	return total
}

func printPeers(out io.Writer, peers []domain.Peer) {
	t := newTable(out, "Peer", "Alias", "Color", "Connected", "Channels")
	for _, p := range peers {
		t.AppendRow(table.Row{p.PeerID, p.Alias, "#" + p.Color, p.Connected, len(p.Channels)})
	}
	t.Render()
}

func printInvoices(out io.Writer, invoices []domain.Invoice) {
	t := newTable(out, "Label", "Status", "Amount", "Expires", "Description")
	for _, inv := range invoices {
		t.AppendRow(table.Row{
			inv.Label.UnwrapOr("-"), inv.Status,
			formatAmount(inv.Detail.Amount, inv.Detail.Currency),
			formatTime(inv.Detail.ExpirationTime),
			inv.Detail.Description,
		})
	}
	t.Render()
}

func printPayments(out io.Writer, payments []domain.Payment) {
	t := newTable(out, "Date", "Status", "Amount", "Destination", "Payment hash")
	for _, p := range payments {
		t.AppendRow(table.Row{
			formatTime(p.Timestamp), p.Status,
			formatAmount(p.Amount, p.Currency),
			p.Destination, p.PaymentHash,
		})
	}
	t.Render()
}

func printInvoiceDetail(out io.Writer, d *domain.InvoiceDetail) {
	t := newTable(out, "Field", "Value")
	t.AppendRows([]table.Row{
		{"Created", formatTime(d.CreationTime)},
		{"Expires", formatTime(d.ExpirationTime)},
		{"Amount", formatAmount(d.Amount, d.Currency)},
		{"Description", d.Description},
		{"Payee", d.Payee},
		{"Payment hash", d.PaymentHash},
		{"Min final CLTV expiry", d.MinFinalCltvExpiry},
	})
	t.Render()
}

// printJSON prints protobuf replies the way lncli does, anything else as
// indented json.
func printJSON(out io.Writer, resp any) error {
	if msg, ok := resp.(proto.Message); ok {
		data, err := protojson.MarshalOptions{
			Multiline:       true,
			Indent:          "    ",
			EmitUnpopulated: true,
		}.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	data, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
