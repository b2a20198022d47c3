package lnd

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"gopkg.in/macaroon.v2"
)

const (
	nodeID       = "03e7156ae33b0a208d0744199163177e909e80176e55d97a2f221ede0f934dd9ad"
	peerA        = "02aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	peerB        = "02bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	walletPasswd = "correct horse"

	unlockMethod = "/lnrpc.WalletUnlocker/UnlockWallet"
)

func rpc(name string) string {
	return "/lnrpc.Lightning/" + name
}

type handler func(req proto.Message) (proto.Message, error)

// fakeNode plays lnd behind fake client connections.
type fakeNode struct {
	mu        sync.Mutex
	handlers  map[string]handler
	streams   map[string]func(req proto.Message) ([]proto.Message, error)
	calls     map[string][]proto.Message
	macaroons []string
	locked    bool
	dials     atomic.Int32
}

func newFakeNode() *fakeNode {
	n := &fakeNode{
		streams: make(map[string]func(req proto.Message) ([]proto.Message, error)),
		calls:   make(map[string][]proto.Message),
	}
	n.handlers = map[string]handler{
		unlockMethod: n.unlockWallet,
		rpc("GetInfo"): func(proto.Message) (proto.Message, error) {
			n.mu.Lock()
			defer n.mu.Unlock()
			if n.locked {
				return nil, status.Error(codes.Unimplemented, "unknown service lnrpc.Lightning")
			}
			return &lnrpc.GetInfoResponse{
				IdentityPubkey: nodeID,
				Alias:          "fireworks",
				Color:          "#3399ff",
				Version:        "0.18.5-beta",
				Uris:           []string{nodeID + "@1.2.3.4:9735"},
				Chains:         []*lnrpc.Chain{{Chain: "bitcoin", Network: "testnet"}},
			}, nil
		},
	}
	for name, resp := range map[string]proto.Message{
		"ListPeers":       &lnrpc.ListPeersResponse{},
		"ListChannels":    &lnrpc.ListChannelsResponse{},
		"PendingChannels": &lnrpc.PendingChannelsResponse{},
		"WalletBalance":   &lnrpc.WalletBalanceResponse{},
		"ListInvoices":    &lnrpc.ListInvoiceResponse{},
		"ListPayments":    &lnrpc.ListPaymentsResponse{},
	} {
		n.reply(name, resp)
	}
	n.handle(rpc("GetNodeInfo"), func(proto.Message) (proto.Message, error) {
		return nil, status.Error(codes.NotFound, "unable to find node")
	})
	return n
}

func (n *fakeNode) unlockWallet(req proto.Message) (proto.Message, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.locked {
		return nil, status.Error(codes.Unimplemented, "unknown service lnrpc.WalletUnlocker")
	}
	if string(req.(*lnrpc.UnlockWalletRequest).GetWalletPassword()) != walletPasswd {
		return nil, status.Error(codes.Unknown, "invalid passphrase for master public key")
	}
	n.locked = false
	return &lnrpc.UnlockWalletResponse{}, nil
}

func (n *fakeNode) handle(method string, h handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) reply(name string, resp proto.Message) {
	n.handle(rpc(name), func(proto.Message) (proto.Message, error) { return resp, nil })
}

func (n *fakeNode) fail(name string, err error) {
	n.handle(rpc(name), func(proto.Message) (proto.Message, error) { return nil, err })
}

func (n *fakeNode) callsTo(method string) []proto.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *fakeNode) record(ctx context.Context, method string, req proto.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[method] = append(n.calls[method], proto.Clone(req))
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		n.macaroons = append(n.macaroons, md.Get("macaroon")...)
	}
}

func (n *fakeNode) dial(string, ...grpc.DialOption) (clientConn, error) {
	n.dials.Add(1)
	return &fakeConn{node: n}, nil
}

type fakeConn struct {
	node   *fakeNode
	closed atomic.Bool
}

func (c *fakeConn) Invoke(
	ctx context.Context, method string, args, reply any, _ ...grpc.CallOption,
) error {
	if c.closed.Load() {
		return status.Error(codes.Canceled, "grpc: the client connection is closing")
	}
	c.node.record(ctx, method, args.(proto.Message))

	c.node.mu.Lock()
	h, ok := c.node.handlers[method]
	c.node.mu.Unlock()
	if !ok {
		return status.Errorf(codes.Unknown, "no handler for %s", method)
	}

	resp, err := h(args.(proto.Message))
	if err != nil {
		return err
	}
	proto.Merge(reply.(proto.Message), resp)
	return nil
}

func (c *fakeConn) NewStream(
	ctx context.Context, _ *grpc.StreamDesc, method string, _ ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return &fakeStream{ctx: ctx, conn: c, method: method}, nil
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// fakeStream replays the messages its handler returned for the single
// request of a server streaming call.
type fakeStream struct {
	grpc.ClientStream

	ctx     context.Context
	conn    *fakeConn
	method  string
	replies []proto.Message
	err     error
}

func (s *fakeStream) Context() context.Context {
	return s.ctx
}

func (s *fakeStream) SendMsg(m any) error {
	s.conn.node.record(s.ctx, s.method, m.(proto.Message))

	s.conn.node.mu.Lock()
	h, ok := s.conn.node.streams[s.method]
	s.conn.node.mu.Unlock()
	if !ok {
		s.err = status.Errorf(codes.Unknown, "no handler for %s", s.method)
		return nil
	}
	s.replies, s.err = h(m.(proto.Message))
	return nil
}

func (s *fakeStream) CloseSend() error {
	return nil
}

func (s *fakeStream) RecvMsg(m any) error {
	if s.err != nil {
		return s.err
	}
	if len(s.replies) == 0 {
		return io.EOF
	}
	proto.Merge(m.(proto.Message), s.replies[0])
	s.replies = s.replies[1:]
	return nil
}

// fakeFrontend hands out passwords in order and cancels once it runs out.
type fakeFrontend struct {
	mu        sync.Mutex
	machine   func() domain.ConnectionState
	passwords []string
	prompts   []domain.ConnectionState
	errors    []string
}

func (f *fakeFrontend) GetPassword(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, f.machine())
	if len(f.passwords) == 0 {
		return "", domain.ErrPasswordCancelled
	}
	password := f.passwords[0]
	f.passwords = f.passwords[1:]
	return password, nil
}

func (f *fakeFrontend) ShowError(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, message)
}

func writeCert(t *testing.T, dir string) string {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"lnd autogenerated cert"}},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	path := filepath.Join(dir, "tls.cert")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(path, pemBytes, 0600))
	return path
}

func newMacaroon(t *testing.T) []byte {
	mac, err := macaroon.New([]byte("root key"), []byte("0"), "lnd", macaroon.LatestVersion)
	require.NoError(t, err)
	macBytes, err := mac.MarshalBinary()
	require.NoError(t, err)
	return macBytes
}

func newTestService(t *testing.T, node *fakeNode) (*service, string) {
	dir := t.TempDir()
	macBytes := newMacaroon(t)
	macPath := filepath.Join(dir, "admin.macaroon")
	require.NoError(t, os.WriteFile(macPath, macBytes, 0600))

	svc := newService(Config{
		RPCHost:      "localhost:10009",
		CertFile:     writeCert(t, dir),
		MacaroonFile: macPath,
	}, node.dial)
	require.NoError(t, svc.Startup())
	t.Cleanup(svc.Close)
	return svc, hex.EncodeToString(macBytes)
}
