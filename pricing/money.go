package pricing

import "github.com/shopspring/decimal"

// FormatMoney renders v with exactly two decimals, rounding half away from zero.
func FormatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Display is a Breakdown with every amount formatted for presentation.
type Display struct {
	Base         string `json:"base"`
	Installation string `json:"installation"`
	Addons       string `json:"addons"`
	Total        string `json:"total"`
	Savings      string `json:"savings,omitempty"`
}

// Display formats b. Savings is left empty unless it should be shown.
func (b Breakdown) Display() Display {
	d := Display{
		Base:         FormatMoney(b.Base),
		Installation: FormatMoney(b.Installation),
		Addons:       FormatMoney(b.Addons),
		Total:        FormatMoney(b.Total),
	}
	if b.ShowSavings() {
		d.Savings = FormatMoney(b.Savings)
	}
	return d
}
