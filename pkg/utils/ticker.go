// Package utils provides ticker normalization helpers shared by the CLI, the
// API and the data providers.
package utils

import (
	"strings"
)

// Common index aliases and their Yahoo Finance symbols.
var indexTickers = map[string]string{
	"SPX":       "^GSPC",
	"SP500":     "^GSPC",
	"S&P500":    "^GSPC",
	"DOW":       "^DJI",
	"DJI":       "^DJI",
	"DJIA":      "^DJI",
	"NASDAQ":    "^IXIC",
	"IXIC":      "^IXIC",
	"NDX":       "^NDX",
	"RUT":       "^RUT",
	"VIX":       "^VIX",
	"FTSE":      "^FTSE",
	"DAX":       "^GDAXI",
	"NIKKEI":    "^N225",
	"NIFTY":     "^NSEI",
	"NIFTY50":   "^NSEI",
	"BANKNIFTY": "^NSEBANK",
	"SENSEX":    "^BSESN",
}

// Company-name aliases users commonly type instead of the listed symbol.
var tickerAliases = map[string]string{
	"APPLE":     "AAPL",
	"MICROSOFT": "MSFT",
	"GOOGLE":    "GOOGL",
	"ALPHABET":  "GOOGL",
	"AMAZON":    "AMZN",
	"FACEBOOK":  "META",
	"FB":        "META",
	"TESLA":     "TSLA",
	"NVIDIA":    "NVDA",
	"NETFLIX":   "NFLX",
	"BERKSHIRE": "BRK-B",
}

// maxTickerLen bounds a plausible symbol including exchange suffix.
const maxTickerLen = 15

// NormalizeTicker normalizes user input to the canonical symbol.
// It handles aliases, uppercasing, whitespace and a leading "$".
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))
	ticker = strings.TrimPrefix(ticker, "$")

	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// ValidTicker reports whether s is syntactically a ticker symbol: 1 to 15
// characters of letters, digits, '.', '-', '=' or a leading '^'.
func ValidTicker(s string) bool {
	if s == "" || len(s) > maxTickerLen {
		return false
	}
	hasAlnum := false
	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			hasAlnum = true
		case r == '.' || r == '-' || r == '=':
		case r == '^' && i == 0:
		default:
			return false
		}
	}
	return hasAlnum
}

// ToYFinanceTicker converts a normalized ticker to Yahoo Finance format.
// Index aliases map to their caret symbols and share-class dots become
// dashes (BRK.B → BRK-B); exchange suffixes such as ".NS" are kept.
func ToYFinanceTicker(ticker string) string {
	ticker = NormalizeTicker(ticker)

	if idx, ok := indexTickers[ticker]; ok {
		return idx
	}

	if i := strings.LastIndexByte(ticker, '.'); i > 0 && len(ticker)-i == 2 {
		return ticker[:i] + "-" + ticker[i+1:]
	}
	return ticker
}
