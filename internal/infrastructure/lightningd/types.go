package lightningd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// msat is a milli-satoshi amount. lightningd reports them either as plain
// numbers or as "<n>msat" strings depending on its version.
type msat int64

func (m *msat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseInt(strings.TrimSuffix(s, "msat"), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid msat amount %q", s)
		}
		*m = msat(v)
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = msat(v)
	return nil
}

// first returns the first non zero amount, for fields that were renamed
// across lightningd versions.
func first(amounts ...msat) int64 {
	for _, a := range amounts {
		if a != 0 {
			return int64(a)
		}
	}
	return 0
}

type getInfoResponse struct {
	ID      string `json:"id"`
	Alias   string `json:"alias"`
	Color   string `json:"color"`
	Version string `json:"version"`
	Network string `json:"network"`
	Address []struct {
		Type    string `json:"type"`
		Address string `json:"address"`
		Port    int    `json:"port"`
	} `json:"address"`
}

type listFundsResponse struct {
	Outputs []struct {
		TxID       string `json:"txid"`
		Output     uint32 `json:"output"`
		Value      int64  `json:"value"`
		AmountMsat msat   `json:"amount_msat"`
		Status     string `json:"status"`
	} `json:"outputs"`
}

type htlc struct {
	Direction  string `json:"direction"`
	AmountMsat msat   `json:"amount_msat"`
	Msatoshi   msat   `json:"msatoshi"`
}

type peerChannel struct {
	PeerID        string `json:"peer_id"`
	PeerConnected bool   `json:"peer_connected"`
	State         string `json:"state"`
	ChannelID     string `json:"channel_id"`
	ToUsMsat      msat   `json:"to_us_msat"`
	TotalMsat     msat   `json:"total_msat"`
	MsatoshiToUs  msat   `json:"msatoshi_to_us"`
	MsatoshiTotal msat   `json:"msatoshi_total"`
	HTLCs         []htlc `json:"htlcs"`
}

type listPeersResponse struct {
	Peers []struct {
		ID        string        `json:"id"`
		Connected bool          `json:"connected"`
		Channels  []peerChannel `json:"channels"`
	} `json:"peers"`
}

type listPeerChannelsResponse struct {
	Channels []peerChannel `json:"channels"`
}

type listNodesResponse struct {
	Nodes []struct {
		NodeID string `json:"nodeid"`
		Alias  string `json:"alias"`
		Color  string `json:"color"`
	} `json:"nodes"`
}

type listInvoicesResponse struct {
	Invoices []struct {
		Label       string `json:"label"`
		Bolt11      string `json:"bolt11"`
		PaymentHash string `json:"payment_hash"`
		Status      string `json:"status"`
		Description string `json:"description"`
		ExpiresAt   int64  `json:"expires_at"`
		Msatoshi    msat   `json:"msatoshi"`
		AmountMsat  msat   `json:"amount_msat"`
	} `json:"invoices"`
}

type decodePayResponse struct {
	Currency           string `json:"currency"`
	CreatedAt          int64  `json:"created_at"`
	Expiry             int64  `json:"expiry"`
	Payee              string `json:"payee"`
	Msatoshi           msat   `json:"msatoshi"`
	AmountMsat         msat   `json:"amount_msat"`
	Description        string `json:"description"`
	MinFinalCltvExpiry uint32 `json:"min_final_cltv_expiry"`
	PaymentHash        string `json:"payment_hash"`
	Signature          string `json:"signature"`
}

type payment struct {
	Label           string `json:"label"`
	PaymentHash     string `json:"payment_hash"`
	Destination     string `json:"destination"`
	Msatoshi        msat   `json:"msatoshi"`
	AmountMsat      msat   `json:"amount_msat"`
	CreatedAt       int64  `json:"created_at"`
	Status          string `json:"status"`
	PaymentPreimage string `json:"payment_preimage"`
}

type listPaymentsResponse struct {
	Payments []payment `json:"payments"`
}

type invoiceResponse struct {
	Bolt11 string `json:"bolt11"`
}
