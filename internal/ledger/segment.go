package ledger

import (
	"regexp"
	"strings"
)

// An extraction strategy recognizes an order-number boundary in a single
// ledger line. Strategies are tried in order; the first match wins, which
// keeps the precedence rule auditable and testable per strategy.
type strategy struct {
	name    string
	extract func(line string) (string, bool)
}

var (
	// Labeled field: "NrZam: 366000", "nrzam 366000", "Nr Zam: 366000".
	labeledFieldRe = regexp.MustCompile(`(?i)Nr\s*Zam[:\s]+(\S+)`)

	// Alphabetic order-number prefixes at line start: ZN366000, ZW366000/2.
	alphaPrefixRe = regexp.MustCompile(`^(Z[NW]\d+(?:/\d+)?)`)

	// Bare 5-7 digit token followed by whitespace (tabular ledger format).
	// Longer runs are waybill numbers, shorter ones are quantities.
	bareNumericRe = regexp.MustCompile(`^(\d{5,7})\s`)
)

// Column-header words that look like order-number tokens but are not.
// Matching candidates are rejected and their line joins the current block.
var falsePositiveTokens = map[string]struct{}{
	"date":    {},
	"data":    {},
	"order":   {},
	"nrzam":   {},
	"phone":   {},
	"telefon": {},
	"country": {},
	"kraj":    {},
}

var boundaryStrategies = []strategy{
	{name: "labeled_field", extract: func(line string) (string, bool) {
		m := labeledFieldRe.FindStringSubmatch(line)
		if m == nil {
			return "", false
		}
		return m[1], true
	}},
	{name: "alpha_prefix", extract: func(line string) (string, bool) {
		m := alphaPrefixRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			return "", false
		}
		return m[1], true
	}},
	{name: "bare_numeric", extract: func(line string) (string, bool) {
		m := bareNumericRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			return "", false
		}
		return m[1], true
	}},
}

// cleanToken strips the punctuation that trails order numbers in tabular
// ledgers.
func cleanToken(tok string) string {
	return strings.TrimRight(strings.TrimSpace(tok), ",|")
}

// boundaryOrderNumber returns the order number starting a new block on this
// line, if any. Column-header words are rejected so a header row does not
// open a bogus block.
func boundaryOrderNumber(line string) (string, bool) {
	for _, s := range boundaryStrategies {
		tok, ok := s.extract(line)
		if !ok {
			continue
		}
		tok = cleanToken(tok)
		if tok == "" {
			continue
		}
		if _, bad := falsePositiveTokens[strings.ToLower(tok)]; bad {
			continue
		}
		return tok, true
	}
	return "", false
}

// Segment splits raw ledger text into order-keyed blocks. Every line between
// boundaries belongs to the block of the most recently detected order number;
// block text is the verbatim join of its lines trimmed of trailing blank
// lines. If no boundary is found in non-empty input, the whole input is
// returned under SentinelKey.
func Segment(text string) *BlockMap {
	blocks := NewBlockMap()
	if strings.TrimSpace(text) == "" {
		return blocks
	}

	var current []string
	currentNr := ""

	flush := func() {
		if currentNr == "" || len(current) == 0 {
			return
		}
		blocks.Set(currentNr, trimTrailingBlank(current))
	}

	for _, line := range strings.Split(text, "\n") {
		if nr, ok := boundaryOrderNumber(line); ok {
			flush()
			currentNr = nr
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	flush()

	if blocks.Len() == 0 {
		blocks.Set(SentinelKey, strings.TrimSpace(text))
	}

	return blocks
}

// CountOrders returns how many order blocks the text contains. Unsegmentable
// non-empty input counts as one.
func CountOrders(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	blocks := Segment(text)
	if n := blocks.Count(); n > 0 {
		return n
	}
	return 1
}

func trimTrailingBlank(lines []string) string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[:end], "\n")
}
