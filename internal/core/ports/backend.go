package ports

import (
	"context"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Backend is the uniform interface over the supported Lightning node
// implementations. Apart from IsConnected, every method either succeeds or
// fails with domain.ErrNotConnected or a *domain.CommandFailedError.
type Backend interface {
	// SetFrontend registers the capability used to ask for the wallet
	// password during the connection handshake.
	SetFrontend(frontend Frontend)
	// Startup loads certificates and credentials and resolves paths, so
	// configuration errors surface here and not at the first call.
	Startup() error
	Close()

	GetBackendName(ctx context.Context) (string, error)
	// IsConnected never fails. It attempts to connect if not connected yet.
	IsConnected(ctx context.Context) bool
	GetNativeCurrency(ctx context.Context) (string, error)
	GetNodeLinks(ctx context.Context) ([]string, error)

	GetNonChannelFunds(ctx context.Context) (map[domain.Outpoint]domain.OnchainFunds, error)
	GetChannelFunds(ctx context.Context) ([]domain.Channel, error)
	GetPeers(ctx context.Context) ([]domain.Peer, error)
	GetInvoices(ctx context.Context) ([]domain.Invoice, error)
	GetPayments(ctx context.Context) ([]domain.Payment, error)

	MakeNewInvoice(
		ctx context.Context, label fn.Option[string], description string,
		amount int64, expiry time.Duration,
	) (bolt11 string, err error)
	DecodeInvoiceData(ctx context.Context, bolt11 string) (*domain.InvoiceDetail, error)
	Pay(ctx context.Context, bolt11 string) error
	Connect(ctx context.Context, link string) error
	MakeChannel(ctx context.Context, peerID string, amount int64) error
	CloseChannel(ctx context.Context, channelID domain.ChannelID) error

	// RunCommand executes a raw node command. Arguments are name=value
	// strings, the reply is returned in the backend native shape.
	RunCommand(ctx context.Context, name string, args []string) (any, error)
}
