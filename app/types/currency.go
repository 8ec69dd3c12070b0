package types

import "strings"

const DefaultCurrency = "ZAR"

// Provider-enforced minimum charge per currency, in minor units. Single
// source of truth for both request validation and the gateway client.
// TODO: confirm non-ZAR floors against Yoco once multi-currency is enabled.
var currencyMinimums = map[string]int64{
	"ZAR": 200,
}

// MinimumAmountCents returns the smallest chargeable amount for a currency.
// Unlisted currencies fall back to the ZAR floor rather than accepting
// arbitrarily small amounts.
func MinimumAmountCents(currency string) int64 {
	if min, ok := currencyMinimums[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return min
	}
	return currencyMinimums["ZAR"]
}

func NormalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency
	}
	return currency
}
