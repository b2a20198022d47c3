package lnd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/internal/core/ports"
	"github.com/bitonicnl/fireworks/internal/infrastructure/session"
	"github.com/bitonicnl/fireworks/utils"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/lnrpc"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	BackendName = "LND"

	passwordPrompt = "Enter the LND wallet password"
	maxListed      = 10000
)

// probePassword is never a valid wallet password, lnd requires at least 8
// characters.
var probePassword = []byte{0}

type Config struct {
	RPCHost      string
	CertFile     string
	MacaroonFile string
	SocksProxy   string
}

// clientConn is the part of *grpc.ClientConn the backend uses.
type clientConn interface {
	grpc.ClientConnInterface
	Close() error
}

type dialFunc func(target string, opts ...grpc.DialOption) (clientConn, error)

func dialGRPC(target string, opts ...grpc.DialOption) (clientConn, error) {
	return grpc.NewClient(target, opts...)
}

type service struct {
	cfg     Config
	dial    dialFunc
	machine *session.Machine

	dialOpts []grpc.DialOption
	macaroon string

	frontendLock sync.Mutex
	frontend     ports.Frontend

	lock   sync.RWMutex
	conn   clientConn
	client lnrpc.LightningClient
	node   domain.NodeInfo
}

func NewService(cfg Config) ports.Backend {
	return newService(cfg, dialGRPC)
}

func newService(cfg Config, dial dialFunc) *service {
	return &service{
		cfg:     cfg,
		dial:    dial,
		machine: session.NewMachine(BackendName),
	}
}

func (s *service) SetFrontend(frontend ports.Frontend) {
	s.frontendLock.Lock()
	defer s.frontendLock.Unlock()
	s.frontend = frontend
}

func (s *service) Startup() error {
	if s.cfg.RPCHost == "" {
		return fmt.Errorf("missing lnd rpc host")
	}
	pool, err := loadCertPool(s.cfg.CertFile)
	if err != nil {
		return err
	}
	if s.cfg.MacaroonFile != "" {
		mac, err := loadMacaroon(s.cfg.MacaroonFile)
		if err != nil {
			return err
		}
		s.macaroon = mac
	}
	opts, err := dialOptions(pool, s.cfg.SocksProxy)
	if err != nil {
		return err
	}
	s.dialOpts = opts
	s.machine.Configure()

	log.Infof("using LND at %s", s.cfg.RPCHost)
	return nil
}

func (s *service) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.machine.Drop()
	if s.conn != nil {
		// nolint:all
		s.conn.Close()
		s.conn = nil
		s.client = nil
	}
}

func (s *service) GetBackendName(ctx context.Context) (string, error) {
	node, err := s.nodeInfo(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s", BackendName, node.Version), nil
}

func (s *service) IsConnected(ctx context.Context) bool {
	return s.ensureConnected(ctx) == nil
}

func (s *service) GetNativeCurrency(ctx context.Context) (string, error) {
	node, err := s.nodeInfo(ctx)
	if err != nil {
		return "", err
	}
	return node.Currency, nil
}

func (s *service) GetNodeLinks(ctx context.Context) ([]string, error) {
	h, ctx, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	info, err := h.client.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return nil, s.fail(h, err)
	}
	node, err := toNodeInfo(info)
	if err != nil {
		return nil, err
	}
	return node.Links(), nil
}

func (s *service) GetNonChannelFunds(
	ctx context.Context,
) (map[domain.Outpoint]domain.OnchainFunds, error) {
	h, ctx, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.WalletBalance(ctx, &lnrpc.WalletBalanceRequest{})
	if err != nil {
		return nil, s.fail(h, err)
	}
	return toOnchainFunds(resp), nil
}

func (s *service) GetChannelFunds(ctx context.Context) ([]domain.Channel, error) {
	h, ctx, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.channelRecords(ctx, h)
	if err != nil {
		return nil, err
	}
	channels := make([]domain.Channel, 0)
	for _, p := range domain.MergePeers(records...) {
		channels = append(channels, p.Channels...)
	}
	return channels, nil
}

func (s *service) GetPeers(ctx context.Context) ([]domain.Peer, error) {
	h, ctx, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.ListPeers(ctx, &lnrpc.ListPeersRequest{})
	if err != nil {
		return nil, s.fail(h, err)
	}
	records, err := s.channelRecords(ctx, h)
	if err != nil {
		return nil, err
	}
	for _, p := range resp.GetPeers() {
		records = append(records, domain.PeerRecord{PeerID: p.GetPubKey(), Connected: true})
	}

	peers := domain.MergePeers(records...)
	for i := range peers {
		info, err := h.client.GetNodeInfo(ctx, &lnrpc.NodeInfoRequest{PubKey: peers[i].PeerID})
		if err != nil {
			if isNotConnected(err) {
				return nil, s.fail(h, err)
			}
			log.WithError(err).Debugf("failed to look up node %s", peers[i].PeerID)
			continue
		}
		if alias := info.GetNode().GetAlias(); alias != "" {
			peers[i].Alias = alias
		}
		peers[i].Color = domain.NormalizeColor(info.GetNode().GetColor())
	}
	return peers, nil
}

func (s *service) GetInvoices(ctx context.Context) ([]domain.Invoice, error) {
	h, ctx, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.ListInvoices(ctx, &lnrpc.ListInvoiceRequest{NumMaxInvoices: maxListed})
	if err != nil {
		return nil, s.fail(h, err)
	}
	currency := s.cachedNode().Currency

	now := time.Now()
	invoices := make([]domain.Invoice, 0, len(resp.GetInvoices()))
	for _, inv := range resp.GetInvoices() {
		var detail *domain.InvoiceDetail
		payReq, err := h.client.DecodePayReq(ctx, &lnrpc.PayReqString{PayReq: inv.GetPaymentRequest()})
		if err != nil {
			if isNotConnected(err) {
				return nil, s.fail(h, err)
			}
			log.WithError(err).Debugf("failed to decode invoice %x", inv.GetRHash())
			detail = fallbackInvoiceDetail(inv, currency)
		} else {
			detail = toInvoiceDetail(inv.GetPaymentRequest(), payReq)
		}
		invoices = append(invoices, toInvoice(inv, detail, now))
	}
	return invoices, nil
}

func (s *service) GetPayments(ctx context.Context) ([]domain.Payment, error) {
	h, ctx, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.ListPayments(ctx, &lnrpc.ListPaymentsRequest{
		IncludeIncomplete: true,
		MaxPayments:       maxListed,
	})
	if err != nil {
		return nil, s.fail(h, err)
	}
	currency := s.cachedNode().Currency

	payments := make([]domain.Payment, 0, len(resp.GetPayments()))
	for _, p := range resp.GetPayments() {
		payments = append(payments, toPayment(p, currency))
	}
	return payments, nil
}

// MakeNewInvoice ignores the label, lnd invoices don't have one.
func (s *service) MakeNewInvoice(
	ctx context.Context, label fn.Option[string], description string,
	amount int64, expiry time.Duration,
) (string, error) {
	h, ctx, err := s.handle(ctx)
	if err != nil {
		return "", err
	}
	label.WhenSome(func(l string) {
		log.Debugf("LND does not support invoice labels, ignoring %s", l)
	})

	resp, err := h.client.AddInvoice(ctx, &lnrpc.Invoice{
		Memo:      description,
		ValueMsat: amount,
		Expiry:    int64(expiry.Seconds()),
	})
	if err != nil {
		return "", s.fail(h, err)
	}
	return resp.GetPaymentRequest(), nil
}

func (s *service) DecodeInvoiceData(
	ctx context.Context, bolt11 string,
) (*domain.InvoiceDetail, error) {
	h, ctx, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	payReq, err := h.client.DecodePayReq(ctx, &lnrpc.PayReqString{PayReq: bolt11})
	if err != nil {
		return nil, s.fail(h, err)
	}
	return toInvoiceDetail(bolt11, payReq), nil
}

func (s *service) Pay(ctx context.Context, bolt11 string) error {
	h, ctx, err := s.handle(ctx)
	if err != nil {
		return err
	}
	resp, err := h.client.SendPaymentSync(ctx, &lnrpc.SendRequest{PaymentRequest: bolt11})
	if err != nil {
		return s.fail(h, err)
	}
	if resp.GetPaymentError() != "" {
		return domain.CommandFailed("%s", resp.GetPaymentError())
	}
	return nil
}

func (s *service) Connect(ctx context.Context, link string) error {
	nodeLink, err := utils.ParseNodeLink(link)
	if err != nil {
		return err
	}
	if nodeLink.Host == "" {
		return domain.CommandFailed("missing host in '%s'", link)
	}

	h, ctx, err := s.handle(ctx)
	if err != nil {
		return err
	}
	_, err = h.client.ConnectPeer(ctx, &lnrpc.ConnectPeerRequest{
		Addr: &lnrpc.LightningAddress{
			Pubkey: nodeLink.PubKey,
			Host:   nodeLink.Host,
		},
	})
	if err != nil {
		return s.fail(h, err)
	}
	return nil
}

func (s *service) MakeChannel(ctx context.Context, peerID string, amount int64) error {
	if !utils.IsValidPubKey(peerID) {
		return domain.CommandFailed("invalid node id '%s'", peerID)
	}
	// nolint:all
	pubkey, _ := hex.DecodeString(peerID)

	h, ctx, err := s.handle(ctx)
	if err != nil {
		return err
	}
	_, err = h.client.OpenChannelSync(ctx, &lnrpc.OpenChannelRequest{
		NodePubkey:         pubkey,
		LocalFundingAmount: domain.MsatToSat(amount),
	})
	if err != nil {
		return s.fail(h, err)
	}
	return nil
}

// CloseChannel returns as soon as the closing transaction is broadcast.
func (s *service) CloseChannel(ctx context.Context, channelID domain.ChannelID) error {
	channelPoint, err := parseChannelPoint(string(channelID))
	if err != nil {
		return err
	}

	h, ctx, err := s.handle(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := h.client.CloseChannel(ctx, &lnrpc.CloseChannelRequest{
		ChannelPoint: channelPoint,
	})
	if err != nil {
		return s.fail(h, err)
	}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return s.fail(h, err)
		}

		switch update := resp.GetUpdate().(type) {
		case *lnrpc.CloseStatusUpdate_ClosePending:
			log.Infof("channel %s close pending", channelID)
			return nil
		case *lnrpc.CloseStatusUpdate_ChanClose:
			log.Infof(
				"channel %s closed with tx %x", channelID, update.ChanClose.GetClosingTxid(),
			)
			return nil
		}
	}
}

// rpcHandle is a borrowed reference to the current session.
type rpcHandle struct {
	conn   clientConn
	client lnrpc.LightningClient
}

// handle ensures the session is up and returns it, along with a context
// carrying the macaroon.
func (s *service) handle(ctx context.Context) (*rpcHandle, context.Context, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, nil, err
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.conn == nil {
		return nil, nil, domain.ErrNotConnected
	}
	h := &rpcHandle{conn: s.conn, client: s.client}
	return h, getCtx(ctx, s.macaroon), nil
}

// fail classifies err and drops the session it was obtained with if the node
// went away.
func (s *service) fail(h *rpcHandle, err error) error {
	err = toBackendError(err)
	if !errors.Is(err, domain.ErrNotConnected) {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.conn != h.conn || !s.machine.Drop() {
		return err
	}
	log.WithError(err).Warn("lost connection to LND")
	// nolint:all
	s.conn.Close()
	s.conn = nil
	s.client = nil
	return err
}

func (s *service) channelRecords(ctx context.Context, h *rpcHandle) ([]domain.PeerRecord, error) {
	open, err := h.client.ListChannels(ctx, &lnrpc.ListChannelsRequest{})
	if err != nil {
		return nil, s.fail(h, err)
	}
	pending, err := h.client.PendingChannels(ctx, &lnrpc.PendingChannelsRequest{})
	if err != nil {
		return nil, s.fail(h, err)
	}
	return toChannelRecords(open, pending), nil
}

func (s *service) cachedNode() domain.NodeInfo {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.node
}

func (s *service) nodeInfo(ctx context.Context) (domain.NodeInfo, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return domain.NodeInfo{}, err
	}
	return s.cachedNode(), nil
}

func (s *service) ensureConnected(ctx context.Context) error {
	if s.machine.IsConnected() {
		return nil
	}
	if !s.machine.Begin() {
		return domain.ErrNotConnected
	}
	if err := s.connect(ctx); err != nil {
		s.machine.Fail()
		log.WithError(err).Warn("failed to connect to LND")
		if errors.Is(err, domain.ErrNotConnected) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrNotConnected, err)
	}
	return nil
}

// connect runs the connection handshake: unlock the wallet if needed, then
// open the session used for all the other calls.
func (s *service) connect(ctx context.Context) error {
	conn, err := s.dial(s.cfg.RPCHost, s.dialOpts...)
	if err != nil {
		return err
	}
	err = s.unlockWallet(ctx, lnrpc.NewWalletUnlockerClient(conn))
	// the unlocker connection can't be used for authenticated calls
	// nolint:all
	conn.Close()
	if err != nil {
		return err
	}

	s.machine.Set(domain.Connecting)
	conn, err = s.dial(s.cfg.RPCHost, s.dialOpts...)
	if err != nil {
		return err
	}
	client := lnrpc.NewLightningClient(conn)
	info, err := client.GetInfo(getCtx(ctx, s.macaroon), &lnrpc.GetInfoRequest{})
	if err != nil {
		// nolint:all
		conn.Close()
		return fmt.Errorf("unable to get info: %w", err)
	}
	node, err := toNodeInfo(info)
	if err != nil {
		// nolint:all
		conn.Close()
		return err
	}

	s.lock.Lock()
	s.conn = conn
	s.client = client
	s.node = node
	s.machine.Set(domain.Connected)
	s.lock.Unlock()

	log.Infof("connected to LND version %s with pubkey %s", node.Version, node.ID)
	return nil
}

// unlockWallet probes the wallet with an invalid password. lnd answers
// Unimplemented once the wallet is unlocked, and a wrong password error
// while it's locked, in which case the frontend is asked for the password
// until it's right or the user gives up.
func (s *service) unlockWallet(ctx context.Context, unlocker lnrpc.WalletUnlockerClient) error {
	_, err := unlocker.UnlockWallet(ctx, &lnrpc.UnlockWalletRequest{
		WalletPassword: probePassword,
	})
	switch {
	case err == nil, walletUnlocked(err):
		return nil
	case isTransportError(err):
		return fmt.Errorf("%w: %s", domain.ErrNotConnected, err)
	}

	s.machine.Set(domain.WalletLocked)
	log.Info("LND wallet is locked")

	for {
		password, err := s.getPassword(ctx)
		if errors.Is(err, domain.ErrPasswordCancelled) {
			log.Warn("wallet unlock cancelled, continuing with a locked wallet")
			return nil
		}
		if err != nil {
			return err
		}

		s.machine.Set(domain.Unlocking)
		_, err = unlocker.UnlockWallet(ctx, &lnrpc.UnlockWalletRequest{
			WalletPassword: []byte(password),
		})
		if err == nil {
			log.Info("LND wallet unlocked")
			return nil
		}
		if isTransportError(err) {
			return fmt.Errorf("%w: %s", domain.ErrNotConnected, err)
		}

		s.machine.Set(domain.WalletLocked)
		s.showError(status.Convert(err).Message())
	}
}

func (s *service) getPassword(ctx context.Context) (string, error) {
	s.frontendLock.Lock()
	frontend := s.frontend
	s.frontendLock.Unlock()
	if frontend == nil {
		return "", domain.ErrPasswordCancelled
	}
	return frontend.GetPassword(ctx, passwordPrompt)
}

func (s *service) showError(message string) {
	s.frontendLock.Lock()
	frontend := s.frontend
	s.frontendLock.Unlock()
	if frontend == nil {
		log.Warn(message)
		return
	}
	frontend.ShowError(message)
}

func walletUnlocked(err error) bool {
	if status.Code(err) == codes.Unimplemented {
		return true
	}
	return strings.Contains(status.Convert(err).Message(), "already unlocked")
}

func isTransportError(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.Canceled, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
