// Package dashboard derives display-ready views from a dashboard snapshot:
// lookups, pivot tables and bars, the FOMC countdown and the sentiment
// gauge. Everything here is a pure function of its inputs.
package dashboard

import "goldtracer/internal/domain"

// Well-known symbols and indicator names in the backend payload.
const (
	SymbolGold   = "GC=F"
	SymbolUSDCNY = "CNY=X"
	SymbolDXY    = "DX-Y.NYB"
	SymbolTNX    = "^TNX"

	MacroRealYield    = "10Y_Real_Yield"
	MacroRiskAversion = "Risk_Aversion_Index"
	MacroPremium      = "Domestic_Premium"
)

// FindTicker returns the quote for symbol. A nil snapshot or an unknown
// symbol reports false, never a zero quote.
func FindTicker(snap *domain.Snapshot, symbol string) (domain.TickerQuote, bool) {
	if snap == nil {
		return domain.TickerQuote{}, false
	}
	for _, t := range snap.Tickers {
		if t.Ticker == symbol {
			return t, true
		}
	}
	return domain.TickerQuote{}, false
}

// FindMacro returns the indicator called name.
func FindMacro(snap *domain.Snapshot, name string) (domain.MacroIndicator, bool) {
	if snap == nil {
		return domain.MacroIndicator{}, false
	}
	for _, m := range snap.Macro {
		if m.Name == name {
			return m, true
		}
	}
	return domain.MacroIndicator{}, false
}
