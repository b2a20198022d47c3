package utils

import (
	"encoding/hex"
	"net"
	"strings"

	"github.com/bitonicnl/fireworks/internal/core/domain"
)

const DefaultPeerPort = "9735"

// NodeLink is a parsed id@host[:port] node URI.
type NodeLink struct {
	PubKey string
	Host   string
}

// ParseNodeLink validates a node link. The port defaults to 9735 when
// omitted. A bare public key (no host) is accepted, Host is then empty.
func ParseNodeLink(link string) (*NodeLink, error) {
	link = strings.TrimSpace(link)
	pubkey, host, hasHost := strings.Cut(link, "@")
	if !IsValidPubKey(pubkey) {
		return nil, domain.CommandFailed("invalid node id in '%s'", link)
	}
	if !hasHost {
		return &NodeLink{PubKey: pubkey}, nil
	}
	if host == "" {
		return nil, domain.CommandFailed("missing host in '%s'", link)
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(strings.Trim(host, "[]"), DefaultPeerPort)
	}
	return &NodeLink{PubKey: pubkey, Host: host}, nil
}

func (l NodeLink) String() string {
	if l.Host == "" {
		return l.PubKey
	}
	return l.PubKey + "@" + l.Host
}

// IsValidPubKey checks for a 33 bytes hex encoded compressed public key.
func IsValidPubKey(pubkey string) bool {
	buf, err := hex.DecodeString(pubkey)
	if err != nil || len(buf) != 33 {
		return false
	}
	return buf[0] == 0x02 || buf[0] == 0x03
}
