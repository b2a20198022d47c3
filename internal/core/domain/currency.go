package domain

import "fmt"

const (
	CurrencyBitcoin         = "bc"
	CurrencyBitcoinTestnet  = "tb"
	CurrencyBitcoinSignet   = "tbs"
	CurrencyBitcoinRegtest  = "bcrt"
	CurrencyLitecoin        = "ltc"
	CurrencyLitecoinTestnet = "ltct"

	MsatPerSat = 1000
)

// CurrencyInfo describes the units of a BIP-173 currency. Multipliers are
// expressed in the smallest unit (milli-satoshi or equivalent).
type CurrencyInfo struct {
	DefaultUnit string
	Multipliers map[string]int64
}

func bitcoinLike(prefix, unit string) CurrencyInfo {
	return CurrencyInfo{
		DefaultUnit: prefix + unit,
		Multipliers: map[string]int64{
			"mSatoshi":          1,
			"Satoshi":           1000,
			"u" + prefix + unit: 100000,
			"m" + prefix + unit: 100000000,
			prefix + unit:       100000000000,
		},
	}
}

var Currencies = map[string]CurrencyInfo{
	CurrencyBitcoin:        bitcoinLike("", "BTC"),
	CurrencyBitcoinTestnet: bitcoinLike("t", "BTC"),
	CurrencyBitcoinSignet:  bitcoinLike("s", "BTC"),
	CurrencyBitcoinRegtest: bitcoinLike("r", "BTC"),
	CurrencyLitecoin: {
		DefaultUnit: "LTC",
		Multipliers: map[string]int64{
			"mlitoshi": 1,
			"litoshi":  1000,
			"uLTC":     100000,
			"mLTC":     100000000,
			"LTC":      100000000000,
		},
	},
	CurrencyLitecoinTestnet: {
		DefaultUnit: "tLTC",
		Multipliers: map[string]int64{
			"mlitoshi": 1,
			"litoshi":  1000,
			"utLTC":    100000,
			"mtLTC":    100000000,
			"tLTC":     100000000000,
		},
	},
}

type chainNetwork struct {
	chain   string
	network string
}

var networkCurrencies = map[chainNetwork]string{
	{"bitcoin", "mainnet"}:  CurrencyBitcoin,
	{"bitcoin", "testnet"}:  CurrencyBitcoinTestnet,
	{"bitcoin", "testnet4"}: CurrencyBitcoinTestnet,
	{"bitcoin", "signet"}:   CurrencyBitcoinSignet,
	{"bitcoin", "regtest"}:  CurrencyBitcoinRegtest,
	{"litecoin", "mainnet"}: CurrencyLitecoin,
	{"litecoin", "testnet"}: CurrencyLitecoinTestnet,
}

// CurrencyFromNetwork maps a chain/network pair as reported by a node to its
// BIP-173 currency code. Unknown pairs are an error, never a guess.
func CurrencyFromNetwork(chain, network string) (string, error) {
	currency, ok := networkCurrencies[chainNetwork{chain, network}]
	if !ok {
		return "", fmt.Errorf("%w: chain %q network %q", ErrUnknownNetwork, chain, network)
	}
	return currency, nil
}

// ToMilliSatoshi converts an amount expressed in a unit with the given
// multiplier to milli-satoshi.
func ToMilliSatoshi(amount, multiplier int64) int64 {
	return amount * multiplier
}

func SatToMsat(sat int64) int64 {
	return ToMilliSatoshi(sat, MsatPerSat)
}

// MsatToSat rounds down to whole satoshi.
func MsatToSat(msat int64) int64 {
	return msat / MsatPerSat
}
