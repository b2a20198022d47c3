package application

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/internal/core/ports"
	"github.com/bitonicnl/fireworks/utils"
	"github.com/lightningnetwork/lnd/fn/v2"
	log "github.com/sirupsen/logrus"
)

const pollTimeout = 30 * time.Second

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NodeSummary is what the backend tells about the node itself.
type NodeSummary struct {
	BackendName string
	Currency    string
	Links       []string
}

// Snapshot is the result of querying all the read operations of the
// backend at once. The zero value stands for a node that can't be reached.
type Snapshot struct {
	Connected    bool
	Node         NodeSummary
	OnchainFunds map[domain.Outpoint]domain.OnchainFunds
	Channels     []domain.Channel
	Peers        []domain.Peer
	Invoices     []domain.Invoice
	Payments     []domain.Payment
}

type Service struct {
	BuildInfo BuildInfo

	backend      ports.Backend
	frontend     ports.Frontend
	schedulerSvc ports.SchedulerService
	pollInterval time.Duration

	lock sync.Mutex
	last *Snapshot

	subscriptions *subscriptionHandler
}

// NewService wires the backend to the frontend. schedulerSvc may be nil
// for one-shot use, Poll is then only run when called explicitly.
func NewService(
	buildInfo BuildInfo,
	backend ports.Backend,
	frontend ports.Frontend,
	schedulerSvc ports.SchedulerService,
	pollInterval time.Duration,
) *Service {
	return &Service{
		BuildInfo:     buildInfo,
		backend:       backend,
		frontend:      frontend,
		schedulerSvc:  schedulerSvc,
		pollInterval:  pollInterval,
		subscriptions: newSubscriptionHandler(),
	}
}

func (s *Service) Start() error {
	if s.frontend != nil {
		s.backend.SetFrontend(s.frontend)
	}
	if err := s.backend.Startup(); err != nil {
		return fmt.Errorf("failed to start backend: %w", err)
	}
	if s.schedulerSvc == nil {
		return nil
	}

	s.schedulerSvc.Start()
	return s.schedulerSvc.SchedulePoll(s.pollInterval, s.poll)
}

func (s *Service) Stop() {
	if s.schedulerSvc != nil {
		s.schedulerSvc.Stop()
	}
	s.subscriptions.stop()
	s.backend.Close()
}

// Poll queries the backend and tells whether anything changed since the
// previous poll. A node that can't be reached is not an error, it results
// in a disconnected snapshot.
func (s *Service) Poll(ctx context.Context) (Snapshot, bool, error) {
	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return Snapshot{}, false, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	changed := s.last == nil || !reflect.DeepEqual(*s.last, snapshot)
	s.last = &snapshot
	return snapshot, changed, nil
}

// GetSnapshot is Poll without the change detection, it doesn't affect what
// the next Poll reports.
func (s *Service) GetSnapshot(ctx context.Context) (Snapshot, error) {
	snapshot, err := s.query(ctx)
	if errors.Is(err, domain.ErrNotConnected) {
		log.WithError(err).Debug("backend not connected")
		return Snapshot{}, nil
	}
	return snapshot, err
}

// Subscribe returns a channel receiving every changed snapshot found by the
// scheduled polls, until ctx is done.
func (s *Service) Subscribe(ctx context.Context) <-chan Snapshot {
	return s.subscriptions.subscribe(ctx)
}

// WhenNextPoll returns the zero time if polls are not scheduled.
func (s *Service) WhenNextPoll() time.Time {
	if s.schedulerSvc == nil {
		return time.Time{}
	}
	return s.schedulerSvc.WhenNextPoll()
}

func (s *Service) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	snapshot, changed, err := s.Poll(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to poll backend")
		return
	}
	if changed {
		log.Debugf("backend data changed, connected: %t", snapshot.Connected)
		s.subscriptions.publish(snapshot)
	}
}

func (s *Service) query(ctx context.Context) (Snapshot, error) {
	if !s.backend.IsConnected(ctx) {
		return Snapshot{}, domain.ErrNotConnected
	}

	node, err := s.GetNodeSummary(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	funds, err := s.backend.GetNonChannelFunds(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	channels, err := s.backend.GetChannelFunds(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	peers, err := s.backend.GetPeers(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	invoices, err := s.backend.GetInvoices(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	payments, err := s.backend.GetPayments(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Connected:    true,
		Node:         node,
		OnchainFunds: funds,
		Channels:     channels,
		Peers:        peers,
		Invoices:     invoices,
		Payments:     payments,
	}, nil
}

func (s *Service) IsConnected(ctx context.Context) bool {
	return s.backend.IsConnected(ctx)
}

func (s *Service) GetNodeSummary(ctx context.Context) (NodeSummary, error) {
	name, err := s.backend.GetBackendName(ctx)
	if err != nil {
		return NodeSummary{}, err
	}
	currency, err := s.backend.GetNativeCurrency(ctx)
	if err != nil {
		return NodeSummary{}, err
	}
	links, err := s.backend.GetNodeLinks(ctx)
	if err != nil {
		return NodeSummary{}, err
	}
	return NodeSummary{BackendName: name, Currency: currency, Links: links}, nil
}

func (s *Service) GetNonChannelFunds(
	ctx context.Context,
) (map[domain.Outpoint]domain.OnchainFunds, error) {
	return s.backend.GetNonChannelFunds(ctx)
}

func (s *Service) GetChannelFunds(ctx context.Context) ([]domain.Channel, error) {
	return s.backend.GetChannelFunds(ctx)
}

func (s *Service) GetPeers(ctx context.Context) ([]domain.Peer, error) {
	return s.backend.GetPeers(ctx)
}

func (s *Service) GetInvoices(ctx context.Context) ([]domain.Invoice, error) {
	return s.backend.GetInvoices(ctx)
}

func (s *Service) GetPayments(ctx context.Context) ([]domain.Payment, error) {
	return s.backend.GetPayments(ctx)
}

func (s *Service) MakeNewInvoice(
	ctx context.Context, label fn.Option[string], description string,
	amount int64, expiry time.Duration,
) (string, error) {
	if amount < 0 {
		return "", domain.CommandFailed("invalid amount %d", amount)
	}
	if expiry <= 0 {
		return "", domain.CommandFailed("invalid expiry %s", expiry)
	}
	return s.backend.MakeNewInvoice(ctx, label, description, amount, expiry)
}

func (s *Service) DecodeInvoice(ctx context.Context, bolt11 string) (*domain.InvoiceDetail, error) {
	return s.backend.DecodeInvoiceData(ctx, bolt11)
}

// Pay refuses invoices for another network, or already expired, before
// asking the node.
func (s *Service) Pay(ctx context.Context, bolt11 string) error {
	currency, err := utils.InvoiceCurrency(bolt11)
	if err != nil {
		return domain.CommandFailed("%s", err)
	}
	native, err := s.backend.GetNativeCurrency(ctx)
	if err != nil {
		return err
	}
	if currency != native {
		return domain.CommandFailed(
			"invoice currency %s does not match the node currency %s", currency, native,
		)
	}
	// only bitcoin invoices can be decoded locally
	if detail, err := utils.DecodeInvoice(bolt11); err == nil && detail.Expired(time.Now()) {
		return domain.CommandFailed("invoice expired at %s", detail.ExpirationTime.Format(time.RFC3339))
	}
	return s.backend.Pay(ctx, bolt11)
}

func (s *Service) Connect(ctx context.Context, link string) error {
	return s.backend.Connect(ctx, link)
}

func (s *Service) MakeChannel(ctx context.Context, peerID string, amount int64) error {
	if amount <= 0 {
		return domain.CommandFailed("invalid amount %d", amount)
	}
	return s.backend.MakeChannel(ctx, peerID, amount)
}

func (s *Service) CloseChannel(ctx context.Context, channelID domain.ChannelID) error {
	return s.backend.CloseChannel(ctx, channelID)
}

func (s *Service) RunCommand(ctx context.Context, name string, args []string) (any, error) {
	if name == "" {
		return nil, domain.CommandFailed("missing command")
	}
	return s.backend.RunCommand(ctx, name, args)
}
