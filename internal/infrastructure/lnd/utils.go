package lnd

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	"github.com/lightningnetwork/lnd/lnrpc"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"gopkg.in/macaroon.v2"
)

// lnd replies can be large, eg. a long invoice history.
const maxMsgRecvSize = 200 * 1024 * 1024

func getCtx(ctx context.Context, macaroon string) context.Context {
	if macaroon == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "macaroon", macaroon)
}

// loadCertPool reads the PEM encoded tls certificate of the node.
func loadCertPool(path string) (*x509.CertPool, error) {
	tlsBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tls certificate: %w", err)
	}

	block, _ := pem.Decode(tlsBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New(
			"failed to decode PEM block containing tls certificate",
		)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return pool, nil
}

// loadMacaroon reads a macaroon file, either binary or hex encoded, and
// returns it hex encoded as expected by lnd in the request metadata.
func loadMacaroon(path string) (string, error) {
	macBytes, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read macaroon: %w", err)
	}
	if decoded, err := hex.DecodeString(strings.TrimSpace(string(macBytes))); err == nil {
		macBytes = decoded
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return "", fmt.Errorf("invalid macaroon %s: %w", path, err)
	}
	return hex.EncodeToString(macBytes), nil
}

func dialOptions(pool *x509.CertPool, socksProxy string) ([]grpc.DialOption, error) {
	logger := log.WithField("backend", BackendName)
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(pool, "")),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxMsgRecvSize)),
		grpc.WithUnaryInterceptor(grpc_logrus.UnaryClientInterceptor(logger)),
		grpc.WithStreamInterceptor(grpc_logrus.StreamClientInterceptor(logger)),
	}
	if socksProxy == "" {
		return opts, nil
	}

	dialer, err := proxy.SOCKS5("tcp", socksProxy, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("invalid socks proxy %s: %w", socksProxy, err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks proxy %s does not support contexts", socksProxy)
	}
	opts = append(opts, grpc.WithContextDialer(
		func(ctx context.Context, addr string) (net.Conn, error) {
			return contextDialer.DialContext(ctx, "tcp", addr)
		},
	))
	return opts, nil
}

// isNotConnected tells whether a gRPC error means the session is unusable,
// because the node went away or its wallet is locked.
func isNotConnected(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.Unimplemented, codes.Canceled:
		return true
	default:
		return false
	}
}

// toBackendError classifies a gRPC error into one of the domain error kinds.
func toBackendError(err error) error {
	if err == nil {
		return nil
	}
	if isNotConnected(err) {
		return fmt.Errorf("%w: %s", domain.ErrNotConnected, err)
	}
	if st, ok := status.FromError(err); ok {
		return domain.CommandFailed("%s", st.Message())
	}
	return domain.CommandFailed("%s", err)
}

func parseChannelPoint(channelPointStr string) (*lnrpc.ChannelPoint, error) {
	channelPointParts := strings.Split(channelPointStr, ":")
	if len(channelPointParts) != 2 {
		return nil, domain.CommandFailed("invalid channel point %s", channelPointStr)
	}

	outputIndex, err := strconv.ParseUint(channelPointParts[1], 10, 32)
	if err != nil {
		return nil, domain.CommandFailed("invalid channel point %s", channelPointStr)
	}
	return &lnrpc.ChannelPoint{
		FundingTxid: &lnrpc.ChannelPoint_FundingTxidStr{
			FundingTxidStr: channelPointParts[0],
		},
		OutputIndex: uint32(outputIndex),
	}, nil
}
