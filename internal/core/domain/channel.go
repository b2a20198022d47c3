package domain

// ChannelID identifies a channel in a backend-specific way. It is handed out
// by the backend and must be passed back verbatim, never built by callers.
type ChannelID string

type Channel struct {
	ChannelID      ChannelID
	State          string
	Operational    bool
	OwnFunds       int64 // mSat
	LockedIncoming int64 // mSat
	LockedOutgoing int64 // mSat
	PeerFunds      int64 // mSat
}

// Capacity is the sum of all the channel balances.
func (c Channel) Capacity() int64 {
	return c.OwnFunds + c.LockedOutgoing + c.PeerFunds + c.LockedIncoming
}

// Outpoint references an on-chain output. Backends that can't list real
// outputs use pseudo outpoints (see PseudoOutpoint).
type Outpoint struct {
	TxID  string
	Index uint32
}

type OnchainFunds struct {
	Amount    int64 // mSat
	Confirmed bool
}

const (
	ConfirmedPseudoTxID   = "confirmed"
	UnconfirmedPseudoTxID = "unconfirmed"
)

// PseudoOutpoint returns the placeholder outpoint used for aggregated wallet
// balances.
func PseudoOutpoint(confirmed bool) Outpoint {
	if confirmed {
		return Outpoint{TxID: ConfirmedPseudoTxID}
	}
	return Outpoint{TxID: UnconfirmedPseudoTxID}
}
