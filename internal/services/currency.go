package services

import (
	"strings"

	"golang.org/x/text/currency"
)

// CurrencyData describes a currency accepted by payment requests.
type CurrencyData struct {
	Code         string
	Divisibility int
	Crypto       bool
}

// CurrencyResolver looks up currency metadata by code.
type CurrencyResolver interface {
	GetCurrencyData(code string) (CurrencyData, bool)
}

var cryptoCurrencies = map[string]int{
	"BTC":  8,
	"LTC":  8,
	"ETH":  18,
	"USDT": 6,
	"SATS": 0,
}

// CurrencyTable resolves ISO-4217 codes and a fixed list of crypto codes.
type CurrencyTable struct {
	extra map[string]int
}

// NewCurrencyTable returns a resolver. extra adds or overrides crypto codes
// with their divisibility.
func NewCurrencyTable(extra map[string]int) *CurrencyTable {
	t := &CurrencyTable{extra: make(map[string]int, len(cryptoCurrencies)+len(extra))}
	for code, div := range cryptoCurrencies {
		t.extra[code] = div
	}
	for code, div := range extra {
		t.extra[strings.ToUpper(code)] = div
	}
	return t
}

func (t *CurrencyTable) GetCurrencyData(code string) (CurrencyData, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return CurrencyData{}, false
	}
	if div, ok := t.extra[code]; ok {
		return CurrencyData{Code: code, Divisibility: div, Crypto: true}, true
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return CurrencyData{}, false
	}
	scale, _ := currency.Standard.Rounding(unit)
	return CurrencyData{Code: unit.String(), Divisibility: scale}, true
}
