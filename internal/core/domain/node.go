package domain

type ConnectionState int

const (
	Unconfigured ConnectionState = iota
	Disconnected
	Connecting
	WalletLocked
	Unlocking
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case WalletLocked:
		return "wallet locked"
	case Unlocking:
		return "unlocking"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// NodeInfo is cached by the backends when a session is established.
type NodeInfo struct {
	ID        string
	Alias     string
	Color     string
	Version   string
	Currency  string
	Addresses []string
}

// Links returns the node URIs in the id@host:port form.
func (n NodeInfo) Links() []string {
	if len(n.Addresses) == 0 {
		return []string{n.ID}
	}
	links := make([]string, 0, len(n.Addresses))
	for _, addr := range n.Addresses {
		links = append(links, n.ID+"@"+addr)
	}
	return links
}
