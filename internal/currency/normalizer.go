// Package currency converts store-currency prices into the settlement
// currency and builds the item/shipping breakdown a payment provider expects.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ISO 4217 codes whose minor unit is not 2.
var minorUnits = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0,
	"XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// MinorUnit returns the number of decimal places used by code.
func MinorUnit(code string) int32 {
	if n, ok := minorUnits[strings.ToUpper(code)]; ok {
		return n
	}
	return 2
}

type Item struct {
	Ref       string
	Quantity  int
	UnitPrice decimal.Decimal // store currency
}

type ConvertedItem struct {
	Ref       string
	Quantity  int
	UnitPrice decimal.Decimal // settlement currency, rounded
}

type Breakdown struct {
	Currency  string
	Total     decimal.Decimal
	ItemTotal decimal.Decimal
	Shipping  decimal.Decimal
	Items     []ConvertedItem
}

// Normalizer holds a fixed exchange rate expressed as store-currency units
// per one settlement-currency unit (e.g. 4000 COP per USD).
type Normalizer struct {
	Rate     decimal.Decimal
	Currency string
}

func New(rate decimal.Decimal, settlementCurrency string) (*Normalizer, error) {
	if !rate.IsPositive() {
		return nil, fmt.Errorf("%w: exchange rate must be positive", ErrInvalidAmount)
	}
	if len(settlementCurrency) != 3 {
		return nil, fmt.Errorf("invalid settlement currency %q", settlementCurrency)
	}
	return &Normalizer{Rate: rate, Currency: strings.ToUpper(settlementCurrency)}, nil
}

// Convert turns one store-currency amount into settlement currency, rounded
// half away from zero to the minor unit.
func (n *Normalizer) Convert(store decimal.Decimal) decimal.Decimal {
	places := MinorUnit(n.Currency)
	return store.DivRound(n.Rate, places)
}

// Normalize builds the breakdown for total. Rounding drift ends up in
// Shipping, so ItemTotal+Shipping always equals Total.
func (n *Normalizer) Normalize(total decimal.Decimal, items []Item) (Breakdown, error) {
	places := MinorUnit(n.Currency)
	if total.IsNegative() {
		return Breakdown{}, fmt.Errorf("%w: total %s is negative", ErrInvalidAmount, total)
	}
	if !total.Equal(total.Truncate(places)) {
		return Breakdown{}, fmt.Errorf("%w: total %s has more than %d decimals", ErrInvalidAmount, total, places)
	}

	out := Breakdown{
		Currency: n.Currency,
		Total:    total,
		Items:    make([]ConvertedItem, 0, len(items)),
	}
	sum := decimal.Zero
	for i, it := range items {
		if it.Quantity <= 0 {
			return Breakdown{}, fmt.Errorf("%w: item %d (%s) quantity %d", ErrInvalidAmount, i, it.Ref, it.Quantity)
		}
		if it.UnitPrice.IsNegative() {
			return Breakdown{}, fmt.Errorf("%w: item %d (%s) unit price %s", ErrInvalidAmount, i, it.Ref, it.UnitPrice)
		}
		unit := n.Convert(it.UnitPrice)
		sum = sum.Add(unit.Mul(decimal.NewFromInt(int64(it.Quantity))))
		out.Items = append(out.Items, ConvertedItem{Ref: it.Ref, Quantity: it.Quantity, UnitPrice: unit})
	}

	shipping := total.Sub(sum)
	if shipping.IsNegative() {
		return Breakdown{}, fmt.Errorf("%w: items total %s exceeds total %s", ErrInvalidAmount, sum, total)
	}
	out.ItemTotal = sum
	out.Shipping = shipping
	return out, nil
}

// Format renders d with exactly the minor-unit places of code ("12.50").
func Format(d decimal.Decimal, code string) string {
	return d.StringFixed(MinorUnit(code))
}
