package resolver

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DetailLevel controls how much of a parameter's history is rendered.
type DetailLevel string

const (
	Minimal DetailLevel = "Minimal"
	Summary DetailLevel = "Summary"
	Full    DetailLevel = "Full"
)

// ParseDetailLevel accepts any casing; empty means Summary.
func ParseDetailLevel(s string) (DetailLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "summary":
		return Summary, nil
	case "minimal":
		return Minimal, nil
	case "full":
		return Full, nil
	}
	return "", fmt.Errorf("unknown detail level %q", s)
}

const (
	listLimit      = 10
	breakdownLimit = 10
)

// Format renders a value for a tooltip.
//
//	Minimal: the value in effect
//	Summary: the value in effect and its effective date
//	Full:    every dated value, newest first
func Format(v Value, level DetailLevel) string {
	switch v.Kind {
	case KindScalar:
		return formatScalar(v, level)
	case KindList:
		return formatList(v, level)
	case KindBrackets:
		return formatBrackets(v, level)
	case KindBreakdown:
		return formatBreakdown(v, level)
	}
	return "unavailable"
}

// FormatKeyed renders a value read through a runtime key, which static
// analysis cannot pin down.
func FormatKeyed(v Value, level DetailLevel, key string) string {
	if key == "" {
		return Format(v, level)
	}
	return fmt.Sprintf("varies by %s: %s", key, Format(v, level))
}

func formatScalar(v Value, level DetailLevel) string {
	unit := v.Metadata.Unit
	if level == Full {
		lines := make([]string, 0, len(v.Series))
		for i := len(v.Series) - 1; i >= 0; i-- {
			e := v.Series[i]
			lines = append(lines, dated(e.Date, FormatValue(e.Value, unit)))
		}
		return strings.Join(lines, "\n")
	}
	e, ok := v.Current()
	if !ok {
		return "no value in effect"
	}
	out := FormatValue(e.Value, unit)
	if level == Summary && e.Date != "" {
		out += fmt.Sprintf(" (as of %s)", e.Date)
	}
	return out
}

func formatList(v Value, level DetailLevel) string {
	if level == Full {
		var sb strings.Builder
		for i := len(v.Series) - 1; i >= 0; i-- {
			e := v.Series[i]
			items, _ := e.Value.([]string)
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(dated(e.Date, fmt.Sprintf("%d items", len(items))))
			for _, item := range items {
				sb.WriteString("\n  - " + item)
			}
		}
		return sb.String()
	}

	e, ok := v.Current()
	if !ok {
		return "no value in effect"
	}
	items, _ := e.Value.([]string)
	if len(items) == 0 {
		return "empty list"
	}
	shown, rest := items, 0
	if len(items) > listLimit {
		shown, rest = items[:listLimit], len(items)-listLimit
	}

	if level == Minimal {
		out := strings.Join(shown, ", ")
		if rest > 0 {
			out += fmt.Sprintf(" ... and %d more", rest)
		}
		return out
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d items", len(items)))
	if e.Date != "" {
		sb.WriteString(fmt.Sprintf(" (as of %s)", e.Date))
	}
	sb.WriteString(":")
	for _, item := range shown {
		sb.WriteString("\n  - " + item)
	}
	if rest > 0 {
		sb.WriteString(fmt.Sprintf("\n  ... and %d more", rest))
	}
	return sb.String()
}

func formatBrackets(v Value, level DetailLevel) string {
	if level == Full {
		var lines []string
		for i, b := range v.Brackets {
			lines = append(lines, fmt.Sprintf("Bracket %d:", i+1))
			for _, col := range bracketColumns(b, v.Column) {
				for j := len(col.series) - 1; j >= 0; j-- {
					e := col.series[j]
					lines = append(lines, fmt.Sprintf("  %s %s", col.name, dated(e.Date, FormatValue(e.Value, col.unit(v.Metadata)))))
				}
			}
		}
		return strings.Join(lines, "\n")
	}

	parts := make([]string, 0, len(v.Brackets))
	latest := ""
	for _, b := range v.Brackets {
		if v.Column != "" {
			col := bracketColumns(b, v.Column)
			if len(col) == 0 {
				continue
			}
			if e, ok := col[0].series.At(v.AsOf); ok {
				parts = append(parts, FormatValue(e.Value, col[0].unit(v.Metadata)))
				latest = maxDate(latest, e.Date)
			}
			continue
		}
		threshold, ok := b.Threshold.At(v.AsOf)
		if !ok {
			continue
		}
		latest = maxDate(latest, threshold.Date)
		label := FormatValue(threshold.Value, v.Metadata.ThresholdUnit) + "+"
		value := "?"
		if e, ok := b.Amount.At(v.AsOf); ok {
			value = FormatValue(e.Value, v.Metadata.Unit)
			latest = maxDate(latest, e.Date)
		} else if e, ok := b.Rate.At(v.AsOf); ok {
			value = FormatValue(e.Value, rateUnit(v.Metadata))
			latest = maxDate(latest, e.Date)
		}
		parts = append(parts, label+": "+value)
	}
	if len(parts) == 0 {
		return "no value in effect"
	}
	out := strings.Join(parts, " | ")
	if level == Summary && latest != "" {
		out += fmt.Sprintf(" (as of %s)", latest)
	}
	return out
}

type column struct {
	name   string
	series Series
}

func (c column) unit(meta Metadata) string {
	switch c.name {
	case "threshold":
		return meta.ThresholdUnit
	case "rate":
		return rateUnit(meta)
	}
	return meta.Unit
}

func rateUnit(meta Metadata) string {
	if meta.Unit == "" || strings.HasPrefix(meta.Unit, "currency-") {
		return "/1"
	}
	return meta.Unit
}

func bracketColumns(b Bracket, only string) []column {
	all := []column{{"threshold", b.Threshold}, {"amount", b.Amount}, {"rate", b.Rate}}
	var out []column
	for _, c := range all {
		if len(c.series) == 0 || (only != "" && c.name != only) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func formatBreakdown(v Value, level DetailLevel) string {
	if level == Minimal {
		lo, hi, n := numericRange(v.node, v.AsOf)
		if n == 0 {
			return fmt.Sprintf("%d entries", len(v.Keys))
		}
		if lo == hi {
			return FormatValue(lo, v.Metadata.Unit)
		}
		return fmt.Sprintf("Range: %s - %s", FormatValue(lo, v.Metadata.Unit), FormatValue(hi, v.Metadata.Unit))
	}

	childLevel := Minimal
	keys := v.Keys
	rest := 0
	if level == Summary && len(keys) > breakdownLimit {
		keys, rest = keys[:breakdownLimit], len(keys)-breakdownLimit
	}
	if level == Full {
		childLevel = Summary
	}

	lines := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		child := v.Child(k)
		if child.Metadata.Unit == "" {
			child.Metadata.Unit = v.Metadata.Unit
		}
		lines = append(lines, fmt.Sprintf("%s: %s", k, Format(child, childLevel)))
	}
	if rest > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more", rest))
	}
	return strings.Join(lines, "\n")
}

// numericRange walks every numeric leaf below n.
func numericRange(n *node, asOf time.Time) (lo, hi float64, count int) {
	var walk func(*node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		if e, ok := n.values.At(asOf); ok {
			if f, isNum := numberOf(e.Value); isNum {
				if count == 0 || f < lo {
					lo = f
				}
				if count == 0 || f > hi {
					hi = f
				}
				count++
			}
		}
		for _, k := range n.order {
			walk(n.children[k])
		}
	}
	walk(n)
	return lo, hi, count
}

// FormatValue renders one value in its unit: currency-USD as $1,234,
// currency-GBP as £1,234, /1 as a percentage.
func FormatValue(value any, unit string) string {
	switch x := value.(type) {
	case float64:
		return formatNumber(x, unit)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return strings.Join(x, ", ")
	case nil:
		return "none"
	case string:
		return x
	}
	return fmt.Sprint(value)
}

var currencySymbols = map[string]string{
	"currency-USD": "$",
	"currency-GBP": "£",
	"currency-EUR": "€",
}

func formatNumber(f float64, unit string) string {
	if math.IsInf(f, 0) {
		if f < 0 {
			return "-∞"
		}
		return "∞"
	}
	if unit == "/1" {
		if math.Abs(f) < 1 {
			return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
		}
		return strconv.FormatFloat(f*100, 'f', 0, 64) + "%"
	}
	if symbol, ok := currencySymbols[unit]; ok {
		sign := ""
		if f < 0 {
			sign, f = "-", -f
		}
		return sign + symbol + humanize.Commaf(math.Round(f*100)/100)
	}
	return humanize.Commaf(f)
}

func dated(date, value string) string {
	if date == "" {
		return value
	}
	return date + ": " + value
}

func maxDate(a, b string) string {
	if b > a {
		return b
	}
	return a
}
