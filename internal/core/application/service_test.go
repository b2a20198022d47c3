package application_test

import (
	"context"
	"crypto/sha256"
	"sync"
	"testing"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/application"
	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/internal/core/ports"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/stretchr/testify/require"
)

const (
	// 2017 mainnet invoice, long expired
	expiredInvoice = "lnbc2500u1pvjluezpp5qqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqypqdq5xysxxatsyp3k7enxv4jsxqzpuaztrnwngzn3kdzw5hydlzf03qdgm2hdq27cqv3agm2awhz5se903vruatfhq77w3ls4evs3ch9zw97j25emudupq63nyw24cg27h2rspfj9srp"
	peerID         = "02aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func TestPoll(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	svc := application.NewService(application.BuildInfo{}, backend, nil, nil, 0)
	require.NoError(t, svc.Start())

	snapshot, changed, err := svc.Poll(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, snapshot.Connected)
	require.Equal(t, application.NodeSummary{
		BackendName: "fake 1.0",
		Currency:    domain.CurrencyBitcoinRegtest,
		Links:       []string{peerID + "@127.0.0.1:9735"},
	}, snapshot.Node)
	require.Len(t, snapshot.Channels, 1)

	_, changed, err = svc.Poll(ctx)
	require.NoError(t, err)
	require.False(t, changed)

	// GetSnapshot doesn't hide changes from Poll
	backend.setChannels([]domain.Channel{{ChannelID: "a", OwnFunds: 1500}})
	snapshot, err = svc.GetSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1500), snapshot.Channels[0].OwnFunds)
	_, changed, err = svc.Poll(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	backend.setChannels([]domain.Channel{{ChannelID: "a", OwnFunds: 2000}})
	snapshot, changed, err = svc.Poll(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, int64(2000), snapshot.Channels[0].OwnFunds)

	// an unreachable node is not an error
	backend.setConnected(false)
	snapshot, changed, err = svc.Poll(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, application.Snapshot{}, snapshot)

	_, changed, err = svc.Poll(ctx)
	require.NoError(t, err)
	require.False(t, changed)

	backend.setConnected(true)
	backend.setErr(domain.CommandFailed("listfunds failed"))
	_, changed, err = svc.Poll(ctx)
	require.True(t, domain.IsCommandFailed(err))
	require.False(t, changed)
}

func TestSubscribe(t *testing.T) {
	backend := newFakeBackend()
	scheduler := &fakeScheduler{}
	svc := application.NewService(application.BuildInfo{}, backend, nil, scheduler, time.Minute)
	require.NoError(t, svc.Start())
	require.Equal(t, time.Minute, scheduler.interval)

	ctx, cancel := context.WithCancel(context.Background())
	snapshots := svc.Subscribe(ctx)

	scheduler.tick()
	snapshot := <-snapshots
	require.True(t, snapshot.Connected)

	// nothing changed, nothing published
	scheduler.tick()
	select {
	case <-snapshots:
		require.Fail(t, "unexpected snapshot")
	default:
	}

	backend.setConnected(false)
	scheduler.tick()
	backend.setConnected(true)
	scheduler.tick()
	// the subscriber was not reading, only the latest snapshot is kept
	snapshot = <-snapshots
	require.True(t, snapshot.Connected)

	cancel()
	_, ok := <-snapshots
	require.False(t, ok)

	svc.Stop()
	require.True(t, scheduler.stopped)
	require.True(t, backend.closed)
	_, ok = <-svc.Subscribe(context.Background())
	require.False(t, ok)
}

func TestStart(t *testing.T) {
	backend := newFakeBackend()
	frontend := &nopFrontend{}
	svc := application.NewService(application.BuildInfo{}, backend, frontend, nil, 0)
	require.NoError(t, svc.Start())
	require.Equal(t, frontend, backend.frontend)
	require.True(t, svc.WhenNextPoll().IsZero())

	backend = newFakeBackend()
	backend.startupErr = domain.ErrUnknownNetwork
	svc = application.NewService(application.BuildInfo{}, backend, nil, nil, 0)
	require.ErrorIs(t, svc.Start(), domain.ErrUnknownNetwork)
}

func TestPay(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	svc := application.NewService(application.BuildInfo{}, backend, nil, nil, 0)

	valid := newInvoice(t, time.Hour)
	require.NoError(t, svc.Pay(ctx, valid))
	require.Equal(t, []string{valid}, backend.paid)

	fixtures := []struct {
		name   string
		bolt11 string
	}{
		{"other network", expiredInvoice},
		{"expired", newInvoice(t, time.Second-time.Hour)},
		{"garbage", "hello"},
	}
	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			err := svc.Pay(ctx, f.bolt11)
			require.True(t, domain.IsCommandFailed(err), err)
		})
	}
	require.Len(t, backend.paid, 1)

	backend.setConnected(false)
	require.ErrorIs(t, svc.Pay(ctx, valid), domain.ErrNotConnected)
}

func TestWriteOperations(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	svc := application.NewService(application.BuildInfo{}, backend, nil, nil, 0)

	bolt11, err := svc.MakeNewInvoice(ctx, fn.Some("label"), "coffee", 1000, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "lnbcrt1fake", bolt11)

	_, err = svc.MakeNewInvoice(ctx, fn.None[string](), "", -1, time.Hour)
	require.True(t, domain.IsCommandFailed(err))
	_, err = svc.MakeNewInvoice(ctx, fn.None[string](), "", 1, 0)
	require.True(t, domain.IsCommandFailed(err))

	require.True(t, domain.IsCommandFailed(svc.MakeChannel(ctx, peerID, 0)))
	require.NoError(t, svc.MakeChannel(ctx, peerID, 1000))

	_, err = svc.RunCommand(ctx, "", nil)
	require.True(t, domain.IsCommandFailed(err))
	resp, err := svc.RunCommand(ctx, "getinfo", []string{"a=1"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"getinfo": []string{"a=1"}}, resp)
}

// newInvoice creates a regtest invoice created an hour ago, which expires
// after the given time.
func newInvoice(t *testing.T, expiry time.Duration) string {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	invoice, err := zpay32.NewInvoice(
		&chaincfg.RegressionNetParams, sha256.Sum256([]byte("preimage")),
		time.Now().Add(-time.Hour),
		zpay32.Amount(lnwire.MilliSatoshi(10000)),
		zpay32.Description("test"),
		zpay32.Expiry(time.Hour+expiry),
	)
	require.NoError(t, err)

	bolt11, err := invoice.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			hash := sha256.Sum256(msg)
			return ecdsa.SignCompact(key, hash[:], true), nil
		},
	})
	require.NoError(t, err)
	return bolt11
}

type fakeBackend struct {
	mu         sync.Mutex
	connected  bool
	channels   []domain.Channel
	err        error
	startupErr error
	frontend   ports.Frontend
	paid       []string
	closed     bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		connected: true,
		channels:  []domain.Channel{{ChannelID: "a", OwnFunds: 1000}},
	}
}

func (b *fakeBackend) setConnected(connected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = connected
}

func (b *fakeBackend) setChannels(channels []domain.Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = channels
}

func (b *fakeBackend) setErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *fakeBackend) check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return domain.ErrNotConnected
	}
	return b.err
}

func (b *fakeBackend) SetFrontend(frontend ports.Frontend) { b.frontend = frontend }
func (b *fakeBackend) Startup() error                     { return b.startupErr }
func (b *fakeBackend) Close()                             { b.closed = true }

func (b *fakeBackend) GetBackendName(context.Context) (string, error) {
	return "fake 1.0", b.check()
}

func (b *fakeBackend) IsConnected(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBackend) GetNativeCurrency(context.Context) (string, error) {
	if err := b.check(); err != nil {
		return "", err
	}
	return domain.CurrencyBitcoinRegtest, nil
}

func (b *fakeBackend) GetNodeLinks(context.Context) ([]string, error) {
	return []string{peerID + "@127.0.0.1:9735"}, b.check()
}

func (b *fakeBackend) GetNonChannelFunds(
	context.Context,
) (map[domain.Outpoint]domain.OnchainFunds, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return map[domain.Outpoint]domain.OnchainFunds{
		domain.PseudoOutpoint(true): {Amount: 5000, Confirmed: true},
	}, nil
}

func (b *fakeBackend) GetChannelFunds(context.Context) ([]domain.Channel, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Channel{}, b.channels...), nil
}

func (b *fakeBackend) GetPeers(context.Context) ([]domain.Peer, error) {
	return []domain.Peer{}, b.check()
}

func (b *fakeBackend) GetInvoices(context.Context) ([]domain.Invoice, error) {
	return []domain.Invoice{}, b.check()
}

func (b *fakeBackend) GetPayments(context.Context) ([]domain.Payment, error) {
	return []domain.Payment{}, b.check()
}

func (b *fakeBackend) MakeNewInvoice(
	context.Context, fn.Option[string], string, int64, time.Duration,
) (string, error) {
	return "lnbcrt1fake", b.check()
}

func (b *fakeBackend) DecodeInvoiceData(context.Context, string) (*domain.InvoiceDetail, error) {
	return &domain.InvoiceDetail{}, b.check()
}

func (b *fakeBackend) Pay(_ context.Context, bolt11 string) error {
	if err := b.check(); err != nil {
		return err
	}
	b.paid = append(b.paid, bolt11)
	return nil
}

func (b *fakeBackend) Connect(context.Context, string) error { return b.check() }

func (b *fakeBackend) MakeChannel(context.Context, string, int64) error { return b.check() }

func (b *fakeBackend) CloseChannel(context.Context, domain.ChannelID) error { return b.check() }

func (b *fakeBackend) RunCommand(_ context.Context, name string, args []string) (any, error) {
	return map[string]any{name: args}, b.check()
}

type fakeScheduler struct {
	interval time.Duration
	pollFunc func()
	stopped  bool
}

func (s *fakeScheduler) Start() {}
func (s *fakeScheduler) Stop()  { s.stopped = true }

func (s *fakeScheduler) SchedulePoll(interval time.Duration, pollFunc func()) error {
	s.interval = interval
	s.pollFunc = pollFunc
	return nil
}

func (s *fakeScheduler) WhenNextPoll() time.Time { return time.Now().Add(s.interval) }

func (s *fakeScheduler) tick() { s.pollFunc() }

type nopFrontend struct{}

func (*nopFrontend) GetPassword(context.Context, string) (string, error) {
	return "", domain.ErrPasswordCancelled
}

func (*nopFrontend) ShowError(string) {}
