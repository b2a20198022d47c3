package domain

import (
	"sort"
	"strings"
)

const (
	DefaultPeerAlias = "(unknown)"
	DefaultPeerColor = "ffffff"
)

type Peer struct {
	PeerID    string
	Alias     string
	Color     string
	Connected bool
	Channels  []Channel
}

// PeerRecord is what a single query knows about a peer. Connectivity queries
// fill Connected, channel queries fill Channels.
type PeerRecord struct {
	PeerID    string
	Connected bool
	Channels  []Channel
}

// MergePeers folds peer records coming from separate queries into one list.
// Records are merged by public key: Connected is true if any record says so,
// channels are collected from all records. The result is sorted by peer id,
// channels by channel id, so the order in which records are given does not
// matter.
func MergePeers(records ...PeerRecord) []Peer {
	byID := make(map[string]*Peer)
	for _, r := range records {
		p, ok := byID[r.PeerID]
		if !ok {
			p = &Peer{
				PeerID:   r.PeerID,
				Alias:    DefaultPeerAlias,
				Color:    DefaultPeerColor,
				Channels: []Channel{},
			}
			byID[r.PeerID] = p
		}
		p.Connected = p.Connected || r.Connected
		p.Channels = append(p.Channels, r.Channels...)
	}

	peers := make([]Peer, 0, len(byID))
	for _, p := range byID {
		sort.SliceStable(p.Channels, func(i, j int) bool {
			return p.Channels[i].ChannelID < p.Channels[j].ChannelID
		})
		peers = append(peers, *p)
	}
	sort.Slice(peers, func(i, j int) bool {
		return peers[i].PeerID < peers[j].PeerID
	})
	return peers
}

// NormalizeColor strips the leading '#' some nodes report and lowercases the
// rgb hex string. Empty colors become DefaultPeerColor.
func NormalizeColor(color string) string {
	color = strings.ToLower(strings.TrimPrefix(color, "#"))
	if color == "" {
		return DefaultPeerColor
	}
	return color
}
