package render

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/and161185/portal-dashboard/model"
)

// Formatter renders metric values as widget text.
type Formatter struct {
	printer  *message.Printer
	currency string
}

// NewFormatter returns a Formatter for the given BCP 47 locale. An unparsable
// locale falls back to English.
func NewFormatter(locale, currency string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag), currency: currency}
}

// Format returns payout as currency with two decimals and every other
// metric as a grouped integer.
func (f *Formatter) Format(name model.MetricName, value float64) string {
	if name == model.Payout {
		return f.currency + f.printer.Sprintf("%.2f", value)
	}
	return f.printer.Sprintf("%.0f", math.Round(value))
}
