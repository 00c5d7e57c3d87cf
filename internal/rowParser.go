package internal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Reserved words that show up as header fragments or labels in the raw
// exports; a "ticker" matching one of these is a mis-split row, not a symbol.
var reservedTickers = map[string]bool{
	"ASK":     true,
	"ABOVE":   true,
	"BID":     true,
	"BELOW":   true,
	"SWEEP":   true,
	"BLOCK":   true,
	"TRADE":   true,
	"VOLUME":  true,
	"PREMIUM": true,
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9]+$`)
var numericOnlyPattern = regexp.MustCompile(`^[0-9]+$`)

type rejectReason uint8

const (
	REJECT_NONE rejectReason = iota
	REJECT_MALFORMED
	REJECT_EXPIRED
)

// splitRawLine splits one raw CSV line on commas, honoring double-quote
// enclosed fields. A quote toggles the in-field state and is not emitted;
// commas inside quotes do not split.
func splitRawLine(line string) []string {
	fields := make([]string, 0, MIN_RAW_FIELDS)
	var current strings.Builder
	insideQuotes := false

	for _, char := range line {
		switch char {
		case '"':
			insideQuotes = !insideQuotes
		case ',':
			if insideQuotes {
				current.WriteRune(char)
			} else {
				fields = append(fields, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}
	fields = append(fields, current.String())
	return fields
}

// isAlternativeLayout reports whether the row uses the alternative column
// arrangement. Detection is value-based only, since both layouts can appear in
// the same file: a literal "[" at index 4, or all of the four leading fields
// empty.
func isAlternativeLayout(fields []string) bool {
	if fields[4] == "[" {
		return true
	}
	return fields[0] == "" && fields[1] == "" && fields[2] == "" && fields[3] == ""
}

func validTicker(ticker string) bool {
	if len(ticker) < 1 || len(ticker) > 10 {
		return false
	}
	if strings.Contains(ticker, " ") {
		return false
	}
	if reservedTickers[strings.ToUpper(ticker)] {
		return false
	}
	if numericOnlyPattern.MatchString(ticker) {
		return false
	}
	return tickerPattern.MatchString(ticker)
}

// parseFloatField coerces a raw strike field, falling back to 0 so the >0
// validity check drops the row.
func parseFloatField(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return value
}

// parseCountField coerces a raw integer field after stripping thousands
// separators, falling back to 0.
func parseCountField(raw string) int {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return value
}

// parseRow turns one raw line into a TradeRecord, or rejects it. Rejection
// never aborts the owning file; callers count the reason and move on.
func parseRow(line string, sourceFile string, referenceTime time.Time) (*TradeRecord, rejectReason) {
	trimmed := strings.TrimRight(line, "\r")
	if strings.TrimSpace(trimmed) == "" {
		return nil, REJECT_MALFORMED
	}

	fields := splitRawLine(trimmed)
	if len(fields) < MIN_RAW_FIELDS {
		return nil, REJECT_MALFORMED
	}

	record := &TradeRecord{
		Strike:       parseFloatField(fields[6]),
		Expiry:       strings.TrimSpace(fields[7]),
		OptionType:   strings.TrimSpace(fields[8]),
		Volume:       parseCountField(fields[9]),
		Premium:      strings.TrimSpace(fields[10]),
		OpenInterest: parseCountField(fields[11]),
		SourceFile:   sourceFile,
	}

	if isAlternativeLayout(fields) {
		record.Timestamp = strings.TrimSpace(fields[5])
		record.Ticker = strings.TrimSpace(fields[12])
		record.SweepType = strings.TrimSpace(fields[13])
	} else {
		record.Timestamp = strings.TrimSpace(fields[3])
		record.Ticker = strings.TrimSpace(fields[4])
		record.SweepType = strings.TrimSpace(fields[5])
	}

	if !validTicker(record.Ticker) {
		return nil, REJECT_MALFORMED
	}
	if record.Strike <= 0 || record.Volume <= 0 {
		return nil, REJECT_MALFORMED
	}
	if record.Expiry == "" || record.OptionType == "" {
		return nil, REJECT_MALFORMED
	}

	if isExpired(record.Expiry, referenceTime) {
		return nil, REJECT_EXPIRED
	}

	return record, REJECT_NONE
}
