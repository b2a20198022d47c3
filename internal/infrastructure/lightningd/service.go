package lightningd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/internal/core/ports"
	"github.com/bitonicnl/fireworks/internal/infrastructure/session"
	"github.com/bitonicnl/fireworks/utils"
	"github.com/lightningnetwork/lnd/fn/v2"
	log "github.com/sirupsen/logrus"
)

const (
	BackendName = "lightningd"
	socketName  = "lightning-rpc"
)

type service struct {
	dir     string
	rpc     *rpcClient
	machine *session.Machine

	lock sync.RWMutex
	node domain.NodeInfo
}

// NewService returns a backend talking to the lightningd instance whose
// lightning directory is dir.
func NewService(dir string) ports.Backend {
	return &service{
		dir:     dir,
		machine: session.NewMachine(BackendName),
	}
}

// SetFrontend is a no-op, lightningd never asks for a password.
func (s *service) SetFrontend(ports.Frontend) {}

func (s *service) Startup() error {
	if s.dir == "" {
		return fmt.Errorf("missing lightningd directory")
	}
	dir, err := filepath.Abs(s.dir)
	if err != nil {
		return fmt.Errorf("invalid lightningd directory %s: %w", s.dir, err)
	}
	socketPath := filepath.Join(dir, socketName)
	s.rpc = newRPCClient(socketPath)
	s.machine.Configure()

	log.Infof("using lightningd socket %s", socketPath)
	return nil
}

func (s *service) Close() {
	s.machine.Drop()
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
	var info getInfoResponse
	if err := s.call(ctx, "getinfo", nil, &info); err != nil {
		return nil, err
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
	var resp listFundsResponse
	if err := s.call(ctx, "listfunds", nil, &resp); err != nil {
		return nil, err
	}
	return toOnchainFunds(resp), nil
}

func (s *service) GetChannelFunds(ctx context.Context) ([]domain.Channel, error) {
	records, err := s.peerRecords(ctx)
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
	records, err := s.peerRecords(ctx)
	if err != nil {
		return nil, err
	}
	peers := domain.MergePeers(records...)
	for i := range peers {
		alias, color, err := s.lookupNode(ctx, peers[i].PeerID)
		if err != nil {
			if errors.Is(err, domain.ErrNotConnected) {
				return nil, err
			}
			log.WithError(err).Debugf("failed to look up node %s", peers[i].PeerID)
			continue
		}
		peers[i].Alias = alias
		peers[i].Color = color
	}
	return peers, nil
}

func (s *service) GetInvoices(ctx context.Context) ([]domain.Invoice, error) {
	var resp listInvoicesResponse
	if err := s.call(ctx, "listinvoices", nil, &resp); err != nil {
		return nil, err
	}
	currency, err := s.GetNativeCurrency(ctx)
	if err != nil {
		return nil, err
	}

	invoices := make([]domain.Invoice, 0, len(resp.Invoices))
	for _, inv := range resp.Invoices {
		detail, err := s.DecodeInvoiceData(ctx, inv.Bolt11)
		if err != nil {
			if errors.Is(err, domain.ErrNotConnected) {
				return nil, err
			}
			log.WithError(err).Debugf("failed to decode invoice %s", inv.Label)
			detail = &domain.InvoiceDetail{
				ExpirationTime: utils.UnixTime(inv.ExpiresAt),
				Amount:         first(inv.AmountMsat, inv.Msatoshi),
				Currency:       currency,
				Description:    inv.Description,
				PaymentHash:    inv.PaymentHash,
			}
		}
		invoices = append(invoices, domain.Invoice{
			Label:  fn.Some(inv.Label),
			Status: domain.InvoiceStatus(inv.Status),
			Bolt11: inv.Bolt11,
			Detail: *detail,
		})
	}
	return invoices, nil
}

func (s *service) GetPayments(ctx context.Context) ([]domain.Payment, error) {
	var resp listPaymentsResponse
	err := s.call(ctx, "listpayments", nil, &resp)
	if domain.IsCommandFailed(err) {
		// listpayments was removed in favour of listsendpays
		err = s.call(ctx, "listsendpays", nil, &resp)
	}
	if err != nil {
		return nil, err
	}
	currency, err := s.GetNativeCurrency(ctx)
	if err != nil {
		return nil, err
	}

	payments := make([]domain.Payment, 0, len(resp.Payments))
	for _, p := range resp.Payments {
		payments = append(payments, toPayment(p, currency))
	}
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].Timestamp.Before(payments[j].Timestamp)
	})
	return payments, nil
}

func (s *service) MakeNewInvoice(
	ctx context.Context, label fn.Option[string], description string,
	amount int64, expiry time.Duration,
) (string, error) {
	params := map[string]any{
		"amount_msat": amount,
		"label":       label.UnwrapOrFunc(newInvoiceLabel),
		"description": description,
		"expiry":      int64(expiry.Seconds()),
	}
	if amount <= 0 {
		params["amount_msat"] = "any"
	}

	var resp invoiceResponse
	if err := s.call(ctx, "invoice", params, &resp); err != nil {
		return "", err
	}
	return resp.Bolt11, nil
}

func (s *service) DecodeInvoiceData(
	ctx context.Context, bolt11 string,
) (*domain.InvoiceDetail, error) {
	var resp decodePayResponse
	if err := s.call(ctx, "decodepay", map[string]any{"bolt11": bolt11}, &resp); err != nil {
		return nil, err
	}
	return toInvoiceDetail(resp), nil
}

func (s *service) Pay(ctx context.Context, bolt11 string) error {
	return s.call(ctx, "pay", map[string]any{"bolt11": bolt11}, nil)
}

func (s *service) Connect(ctx context.Context, link string) error {
	nodeLink, err := utils.ParseNodeLink(link)
	if err != nil {
		return err
	}
	return s.call(ctx, "connect", map[string]any{"id": nodeLink.String()}, nil)
}

func (s *service) MakeChannel(ctx context.Context, peerID string, amount int64) error {
	params := map[string]any{
		"id":     peerID,
		"amount": domain.MsatToSat(amount),
	}
	return s.call(ctx, "fundchannel", params, nil)
}

func (s *service) CloseChannel(ctx context.Context, channelID domain.ChannelID) error {
	return s.call(ctx, "close", map[string]any{"id": string(channelID)}, nil)
}

func (s *service) RunCommand(ctx context.Context, name string, args []string) (any, error) {
	params, err := utils.ParseCommandArgs(args)
	if err != nil {
		return nil, err
	}
	var result any
	if err := s.call(ctx, name, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// peerRecords lists the channels with listpeerchannels, falling back to the
// channels embedded in listpeers on nodes that don't support it.
func (s *service) peerRecords(ctx context.Context) ([]domain.PeerRecord, error) {
	var peers listPeersResponse
	if err := s.call(ctx, "listpeers", nil, &peers); err != nil {
		return nil, err
	}

	records := make([]domain.PeerRecord, 0, len(peers.Peers))
	connected := make(map[string]bool, len(peers.Peers))
	for _, p := range peers.Peers {
		connected[p.ID] = p.Connected
		records = append(records, domain.PeerRecord{PeerID: p.ID, Connected: p.Connected})
	}

	var resp listPeerChannelsResponse
	err := s.call(ctx, "listpeerchannels", nil, &resp)
	if err != nil && !domain.IsCommandFailed(err) {
		return nil, err
	}
	if err == nil {
		for _, c := range resp.Channels {
			records = append(records, domain.PeerRecord{
				PeerID:    c.PeerID,
				Connected: c.PeerConnected,
				Channels: []domain.Channel{
					toChannel(c.PeerID, c.PeerConnected || connected[c.PeerID], c),
				},
			})
		}
		return records, nil
	}

	for _, p := range peers.Peers {
		channels := make([]domain.Channel, 0, len(p.Channels))
		for _, c := range p.Channels {
			channels = append(channels, toChannel(p.ID, p.Connected, c))
		}
		records = append(records, domain.PeerRecord{PeerID: p.ID, Channels: channels})
	}
	return records, nil
}

func (s *service) lookupNode(ctx context.Context, id string) (string, string, error) {
	var resp listNodesResponse
	if err := s.call(ctx, "listnodes", map[string]any{"id": id}, &resp); err != nil {
		return "", "", err
	}
	if len(resp.Nodes) == 0 || resp.Nodes[0].Alias == "" {
		return "", "", fmt.Errorf("node %s not found", id)
	}
	return resp.Nodes[0].Alias, domain.NormalizeColor(resp.Nodes[0].Color), nil
}

func (s *service) nodeInfo(ctx context.Context) (domain.NodeInfo, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return domain.NodeInfo{}, err
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.node, nil
}

// ensureConnected runs the getinfo probe unless a session is already up.
func (s *service) ensureConnected(ctx context.Context) error {
	if s.machine.IsConnected() {
		return nil
	}
	if !s.machine.Begin() {
		return domain.ErrNotConnected
	}

	var info getInfoResponse
	if err := s.rpc.call(ctx, "getinfo", nil, &info); err != nil {
		s.machine.Fail()
		log.WithError(err).Debug("failed to connect to lightningd")
		if errors.Is(err, domain.ErrNotConnected) {
			return err
		}
		return fmt.Errorf("%w: %s", domain.ErrNotConnected, err)
	}
	node, err := toNodeInfo(info)
	if err != nil {
		s.machine.Fail()
		log.WithError(err).Error("unsupported lightningd network")
		return fmt.Errorf("%w: %w", domain.ErrNotConnected, err)
	}

	s.lock.Lock()
	s.node = node
	s.lock.Unlock()
	s.machine.Set(domain.Connected)

	log.Infof("connected to lightningd version %s with pubkey %s", node.Version, node.ID)
	return nil
}

// call ensures the session is up, then performs the call. Losing the socket
// drops the session so that the next call reconnects.
func (s *service) call(ctx context.Context, method string, params, out any) error {
	if err := s.ensureConnected(ctx); err != nil {
		return err
	}
	err := s.rpc.call(ctx, method, params, out)
	if errors.Is(err, domain.ErrNotConnected) && s.machine.Drop() {
		log.WithError(err).Warn("lost connection to lightningd")
	}
	return err
}

// newInvoiceLabel makes the unique label lightningd requires for invoices
// created without one.
func newInvoiceLabel() string {
	suffix := make([]byte, 4)
	// nolint:all
	rand.Read(suffix)
	return fmt.Sprintf("%d-%s", time.Now().UTC().UnixMilli(), hex.EncodeToString(suffix))
}
