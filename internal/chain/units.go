package chain

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const EtherDecimals = 18

// Amount is a wei value that renders as both wei and ETH in JSON.
type Amount struct {
	wei *big.Int
}

func NewAmount(wei *big.Int) Amount {
	if wei == nil {
		return Amount{wei: new(big.Int)}
	}
	return Amount{wei: new(big.Int).Set(wei)}
}

// Wei returns a copy of the underlying value.
func (a Amount) Wei() *big.Int {
	if a.wei == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.wei)
}

func (a Amount) Ether() string { return FormatEther(a.wei) }

func (a Amount) String() string { return a.Wei().String() }

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Wei string `json:"wei"`
		Eth string `json:"eth"`
	}{Wei: a.Wei().String(), Eth: a.Ether()})
}

// FormatUnits renders v scaled down by decimals, without trailing zeros.
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

func FormatEther(v *big.Int) string { return FormatUnits(v, EtherDecimals) }

// ParseUnits converts a decimal string like "1.5" into base units.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimals", s, decimals)
	}
	return scaled.BigInt(), nil
}

func ParseEther(s string) (*big.Int, error) { return ParseUnits(s, EtherDecimals) }

// Percent returns part/whole*100 rounded to two decimals, or zero when whole is zero.
func Percent(part, whole *big.Int) decimal.Decimal {
	if whole == nil || whole.Sign() == 0 || part == nil {
		return decimal.Zero
	}
	p := decimal.NewFromBigInt(part, 0)
	w := decimal.NewFromBigInt(whole, 0)
	return p.Mul(decimal.NewFromInt(100)).DivRound(w, 8).Round(2)
}

// FormatBps renders basis points as a percentage string, e.g. 1250 -> "12.5".
func FormatBps(bps *big.Int) string {
	if bps == nil {
		return "0"
	}
	return decimal.NewFromBigInt(bps, -2).String()
}

// ParsePercent converts a percentage string into basis points.
func ParsePercent(s string) (*big.Int, error) {
	return ParseUnits(s, 2)
}
