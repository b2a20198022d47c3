package types

// Amounts are in milli-satoshi, times in RFC3339.

type Info struct {
	Connected bool     `json:"connected"`
	Backend   string   `json:"backend,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	Links     []string `json:"links,omitempty"`
	NextPoll  string   `json:"nextPoll,omitempty"`
}

type OnchainFunds struct {
	Txid      string `json:"txid"`
	Vout      uint32 `json:"vout"`
	Amount    int64  `json:"amount"`
	Confirmed bool   `json:"confirmed"`
}

type Channel struct {
	ChannelID      string `json:"channelId"`
	State          string `json:"state"`
	Operational    bool   `json:"operational"`
	OwnFunds       int64  `json:"ownFunds"`
	LockedIncoming int64  `json:"lockedIncoming"`
	LockedOutgoing int64  `json:"lockedOutgoing"`
	PeerFunds      int64  `json:"peerFunds"`
}

type Funds struct {
	Onchain  []OnchainFunds `json:"onchain"`
	Channels []Channel      `json:"channels"`
}

type Peer struct {
	PeerID    string    `json:"peerId"`
	Alias     string    `json:"alias"`
	Color     string    `json:"color"`
	Connected bool      `json:"connected"`
	Channels  []Channel `json:"channels"`
}

type InvoiceDetail struct {
	CreatedAt          string `json:"createdAt,omitempty"`
	ExpiresAt          string `json:"expiresAt,omitempty"`
	MinFinalCltvExpiry uint32 `json:"minFinalCltvExpiry"`
	Amount             int64  `json:"amount"`
	Currency           string `json:"currency"`
	Description        string `json:"description"`
	Payee              string `json:"payee,omitempty"`
	PaymentHash        string `json:"paymentHash"`
}

type Invoice struct {
	Label  *string       `json:"label,omitempty"`
	Status string        `json:"status"`
	Bolt11 string        `json:"bolt11"`
	Detail InvoiceDetail `json:"detail"`
}

type Payment struct {
	Label           string `json:"label,omitempty"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Date            string `json:"date"`
	Status          string `json:"status"`
	Destination     string `json:"destination,omitempty"`
	PaymentHash     string `json:"paymentHash"`
	PaymentPreimage string `json:"paymentPreimage,omitempty"`
}

type Snapshot struct {
	Info     Info      `json:"info"`
	Funds    Funds     `json:"funds"`
	Peers    []Peer    `json:"peers"`
	Invoices []Invoice `json:"invoices"`
	Payments []Payment `json:"payments"`
}

type NewInvoiceRequest struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	// seconds, defaults to one hour
	Expiry int64 `json:"expiry"`
}

type Bolt11Request struct {
	Bolt11 string `json:"bolt11" binding:"required"`
}

type ConnectRequest struct {
	Link string `json:"link" binding:"required"`
}

type OpenChannelRequest struct {
	PeerID string `json:"peerId" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

type CommandRequest struct {
	Name string   `json:"name" binding:"required"`
	Args []string `json:"args"`
}
