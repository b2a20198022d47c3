package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/application"
	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/internal/core/ports"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/stretchr/testify/require"
)

const peerID = "02aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// fakeBackend implements what the handlers under test use, anything else
// panics.
type fakeBackend struct {
	ports.Backend

	connected bool
	closed    []domain.ChannelID
	invoice   struct {
		label  fn.Option[string]
		amount int64
		expiry time.Duration
	}
}

func (b *fakeBackend) check() error {
	if !b.connected {
		return domain.ErrNotConnected
	}
	return nil
}

func (b *fakeBackend) IsConnected(context.Context) bool { return b.connected }

func (b *fakeBackend) GetBackendName(context.Context) (string, error) {
	return "lightningd v24.11", b.check()
}

func (b *fakeBackend) GetNativeCurrency(context.Context) (string, error) {
	return domain.CurrencyBitcoinTestnet, b.check()
}

func (b *fakeBackend) GetNodeLinks(context.Context) ([]string, error) {
	return []string{peerID + "@10.0.0.1:9735"}, b.check()
}

func (b *fakeBackend) GetNonChannelFunds(
	context.Context,
) (map[domain.Outpoint]domain.OnchainFunds, error) {
	return map[domain.Outpoint]domain.OnchainFunds{
		{TxID: "bb", Index: 1}: {Amount: 2000},
		{TxID: "aa", Index: 0}: {Amount: 1000, Confirmed: true},
	}, b.check()
}

func (b *fakeBackend) GetChannelFunds(context.Context) ([]domain.Channel, error) {
	return []domain.Channel{{ChannelID: "aa:1", State: "Normal", OwnFunds: 5000}}, b.check()
}

func (b *fakeBackend) GetPeers(context.Context) ([]domain.Peer, error) {
	return []domain.Peer{{PeerID: peerID, Alias: "alice", Color: "ff9900"}}, b.check()
}

func (b *fakeBackend) GetInvoices(context.Context) ([]domain.Invoice, error) {
	return []domain.Invoice{
		{Label: fn.Some("coffee"), Status: domain.InvoicePaid, Bolt11: "lntb1a"},
		{Label: fn.None[string](), Status: domain.InvoiceUnpaid, Bolt11: "lntb1b"},
	}, b.check()
}

func (b *fakeBackend) GetPayments(context.Context) ([]domain.Payment, error) {
	return []domain.Payment{{
		Amount:    1000,
		Timestamp: time.Unix(1700000000, 0),
		Status:    domain.PaymentComplete,
	}}, b.check()
}

func (b *fakeBackend) MakeNewInvoice(
	_ context.Context, label fn.Option[string], _ string, amount int64, expiry time.Duration,
) (string, error) {
	b.invoice.label = label
	b.invoice.amount = amount
	b.invoice.expiry = expiry
	return "lntb1new", b.check()
}

func (b *fakeBackend) CloseChannel(_ context.Context, channelID domain.ChannelID) error {
	if err := b.check(); err != nil {
		return err
	}
	if !strings.Contains(string(channelID), ":") {
		return domain.CommandFailed("invalid channel point %s", channelID)
	}
	b.closed = append(b.closed, channelID)
	return nil
}

func (b *fakeBackend) RunCommand(_ context.Context, name string, _ []string) (any, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	switch name {
	case "getinfo":
		return &lnrpc.GetInfoResponse{Alias: "fireworks", NumPeers: 2}, nil
	case "listfunds":
		return map[string]any{"outputs": []any{}}, nil
	}
	return nil, domain.CommandFailed("Unknown command '%s'", name)
}

func newTestService(t *testing.T) (*service, *fakeBackend) {
	backend := &fakeBackend{connected: true}
	appSvc := application.NewService(application.BuildInfo{}, backend, nil, nil, 0)
	return newService(appSvc), backend
}

func do(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestReadApi(t *testing.T) {
	svc, backend := newTestService(t)

	w := do(t, svc, http.MethodGet, "/api/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{
		"connected": true,
		"backend": "lightningd v24.11",
		"currency": "tb",
		"links": ["`+peerID+`@10.0.0.1:9735"]
	}`, w.Body.String())

	w = do(t, svc, http.MethodGet, "/api/funds", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{
		"onchain": [
			{"txid": "aa", "vout": 0, "amount": 1000, "confirmed": true},
			{"txid": "bb", "vout": 1, "amount": 2000, "confirmed": false}
		],
		"channels": [{
			"channelId": "aa:1", "state": "Normal", "operational": false,
			"ownFunds": 5000, "lockedIncoming": 0, "lockedOutgoing": 0, "peerFunds": 0
		}]
	}`, w.Body.String())

	w = do(t, svc, http.MethodGet, "/api/invoices", "")
	require.Equal(t, http.StatusOK, w.Code)
	var invoices []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &invoices))
	require.Len(t, invoices, 2)
	require.Equal(t, "coffee", invoices[0]["label"])
	require.NotContains(t, invoices[1], "label")

	w = do(t, svc, http.MethodGet, "/api/payments", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"date":"2023-11-14T22:13:20Z"`)

	w = do(t, svc, http.MethodGet, "/api/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	snapshot := decode(t, w)
	require.Equal(t, true, snapshot["info"].(map[string]any)["connected"])
	require.Len(t, snapshot["peers"], 1)

	backend.connected = false
	w = do(t, svc, http.MethodGet, "/api/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"connected": false}`, w.Body.String())

	for _, path := range []string{
		"/api/funds", "/api/channels", "/api/peers", "/api/invoices", "/api/payments",
	} {
		w = do(t, svc, http.MethodGet, path, "")
		require.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		require.Contains(t, decode(t, w)["error"], "not connected", path)
	}

	// a snapshot of an unreachable node is not an error
	w = do(t, svc, http.MethodGet, "/api/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestWriteApi(t *testing.T) {
	svc, backend := newTestService(t)

	t.Run("new invoice", func(t *testing.T) {
		w := do(t, svc, http.MethodPost, "/api/invoices", `{"description":"tea","amount":1500}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "lntb1new", decode(t, w)["bolt11"])
		require.Equal(t, fn.None[string](), backend.invoice.label)
		require.Equal(t, int64(1500), backend.invoice.amount)
		require.Equal(t, time.Hour, backend.invoice.expiry)

		w = do(t, svc, http.MethodPost, "/api/invoices", `{"label":"l","amount":1,"expiry":60}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, fn.Some("l"), backend.invoice.label)
		require.Equal(t, time.Minute, backend.invoice.expiry)

		w = do(t, svc, http.MethodPost, "/api/invoices", `{"amount":-1}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("pay", func(t *testing.T) {
		w := do(t, svc, http.MethodPost, "/api/pay", `{"bolt11":"not an invoice"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = do(t, svc, http.MethodPost, "/api/pay", `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("close channel", func(t *testing.T) {
		w := do(t, svc, http.MethodDelete, "/api/channels/aa:1", "")
		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, []domain.ChannelID{"aa:1"}, backend.closed)

		w = do(t, svc, http.MethodDelete, "/api/channels/aa", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "invalid channel point aa", decode(t, w)["error"])
	})

	t.Run("command", func(t *testing.T) {
		w := do(t, svc, http.MethodPost, "/api/command", `{"name":"getinfo"}`)
		require.Equal(t, http.StatusOK, w.Code)
		result := decode(t, w)["result"].(map[string]any)
		require.Equal(t, "fireworks", result["alias"])
		require.Equal(t, float64(2), result["numPeers"])

		w = do(t, svc, http.MethodPost, "/api/command", `{"name":"listfunds","args":["spent=true"]}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"result":{"outputs":[]}}`, w.Body.String())

		w = do(t, svc, http.MethodPost, "/api/command", `{"name":"frobnicate"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "Unknown command 'frobnicate'", decode(t, w)["error"])

		backend.connected = false
		w = do(t, svc, http.MethodPost, "/api/command", `{"name":"getinfo"}`)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestEventsApi(t *testing.T) {
	svc, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := newStreamRecorder()
	svc.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), "event:snapshot")
	require.Contains(t, w.Body.String(), `"backend":"lightningd v24.11"`)
}

// streamRecorder is a response recorder that gin can stream to.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closeCh chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closeCh
}
