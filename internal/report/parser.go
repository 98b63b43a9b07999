// Package report parses the scoring service's semi-structured priority
// report back into discrete case records.
//
// The report is organized into region sections opened by banner lines
// (OPERATORZY DE/FR/UKPL). Within a region each case starts with a header in
// one of two shapes:
//
//	[SCORE=120] 🔴 | Index: X9 | ...
//	🔴 [120] | Index: X9 | ...
//
// followed by the verbatim ledger line(s) the score was computed from, and
// closed by a marker line. Parsing is strictly best-effort: malformed input
// degrades to placeholders or empty results, never an error.
package report

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

var (
	bannerRes = map[model.Group]*regexp.Regexp{
		model.GroupDE:   regexp.MustCompile(`▬+\s*OPERATORZY\s+DE`),
		model.GroupFR:   regexp.MustCompile(`▬+\s*OPERATORZY\s+FR`),
		model.GroupUKPL: regexp.MustCompile(`▬+\s*OPERATORZY\s+UKPL`),
	}

	// Header shape 1: [SCORE=120] 🔴 | label...
	headerScoreFirstRe = regexp.MustCompile(`^\[SCORE=(\d+)\]\s*([🔴🟡⚪📦])\s*\|\s*(.*)`)
	// Header shape 2: 🔴 [120] | label...
	headerIconFirstRe = regexp.MustCompile(`^([🔴🟡⚪📦])\s*\[(\d+)\]\s*\|\s*(.*)`)

	// Cheap header probes used when deciding where a body ends.
	headerProbeScoreRe = regexp.MustCompile(`^\[SCORE=\d+\]`)
	headerProbeIconRe  = regexp.MustCompile(`^[🔴🟡⚪📦]\s*\[\d+\]`)

	commercialIndexLabelRe = regexp.MustCompile(`Index:\s*(\S+)`)
	commercialIndexBodyRe  = regexp.MustCompile(`(?i)lindexy[:\s]+(\S+)`)
)

// Order-number recovery strategies, applied to the captured body in order;
// the last two fall back to a bare 5-7 digit token, first in the body and
// then in the header/label text.
var orderNumberStrategies = []struct {
	name string
	re   *regexp.Regexp
}{
	{name: "labeled_field", re: regexp.MustCompile(`(?i)Nr\s*Zam[:\s]+(\S+)`)},
	{name: "alpha_prefix", re: regexp.MustCompile(`(ZN\d+)`)},
	{name: "slash_pair", re: regexp.MustCompile(`(ZW\d+/\d+)`)},
	{name: "bare_numeric", re: regexp.MustCompile(`(?m)^(\d{5,7})\b`)},
}

// header holds one parsed case header line.
type header struct {
	line  string
	icon  string
	label string
	score int
}

func parseHeader(line string) (header, bool) {
	if m := headerScoreFirstRe.FindStringSubmatch(line); m != nil {
		return header{line: line, score: atoi(m[1]), icon: m[2], label: strings.TrimSpace(m[3])}, true
	}
	if m := headerIconFirstRe.FindStringSubmatch(line); m != nil {
		return header{line: line, score: atoi(m[2]), icon: m[1], label: strings.TrimSpace(m[3])}, true
	}
	return header{}, false
}

// atoi is safe here: the regexes only capture digit runs.
func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func isTerminator(line string) bool {
	return line == "---" ||
		strings.HasPrefix(line, "▬") ||
		strings.HasPrefix(line, "═══") ||
		headerProbeScoreRe.MatchString(line) ||
		headerProbeIconRe.MatchString(line)
}

func bannerGroup(line string) (model.Group, bool) {
	for _, g := range model.Groups() {
		if bannerRes[g].MatchString(line) {
			return g, true
		}
	}
	return "", false
}

// extractOrderNumber recovers an order number from the captured body,
// falling back to the header and label text. Reports false when nothing
// plausible is found.
func extractOrderNumber(body, headerText, label string) (string, bool) {
	for _, s := range orderNumberStrategies {
		if m := s.re.FindStringSubmatch(body); m != nil {
			return cleanOrderToken(m[1]), true
		}
	}
	for _, text := range []string{headerText, label} {
		if m := orderNumberStrategies[len(orderNumberStrategies)-1].re.FindStringSubmatch(text); m != nil {
			return cleanOrderToken(m[1]), true
		}
	}
	return "", false
}

func cleanOrderToken(tok string) string {
	return strings.TrimRight(strings.TrimSpace(tok), ",|")
}

func extractCommercialIndex(label, body string) string {
	if m := commercialIndexLabelRe.FindStringSubmatch(label); m != nil {
		return m[1]
	}
	if m := commercialIndexBodyRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// isDiagnosticBanner marks the report's "missing from ledger" alert section,
// which is advisory output and contributes no case records.
func isDiagnosticBanner(line string) bool {
	return strings.Contains(line, "ALERT") && strings.Contains(line, "BRAK W SZTURCHACZU")
}

// Parse converts report text into ordered case records. Records carry score,
// icon, label, group, commercial index, verbatim source line and header line;
// identity and assignment fields are left for the commit step. Headers with
// an empty captured body are discarded. Unrecoverable order numbers are
// synthesized as UNKNOWN_<n> by emission position.
func Parse(text string) []model.CaseRecord {
	var cases []model.CaseRecord
	var currentGroup model.Group

	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])

		if g, ok := bannerGroup(line); ok {
			currentGroup = g
		}

		if isDiagnosticBanner(line) {
			i++
			for i < len(lines) {
				next := strings.TrimSpace(lines[i])
				if strings.HasPrefix(next, "═══") || strings.HasPrefix(next, "▬") {
					break
				}
				i++
			}
			continue
		}

		h, ok := parseHeader(line)
		if !ok || currentGroup == "" {
			i++
			continue
		}

		i++
		var bodyLines []string
		for i < len(lines) {
			next := strings.TrimSpace(lines[i])
			if isTerminator(next) {
				break
			}
			if next != "" {
				bodyLines = append(bodyLines, lines[i])
			}
			i++
		}

		body := strings.TrimSpace(strings.Join(bodyLines, "\n"))
		if body == "" {
			// A header with no body is not a case.
			continue
		}

		orderNumber, found := extractOrderNumber(body, h.line, h.label)
		if !found {
			orderNumber = fmt.Sprintf("UNKNOWN_%d", len(cases)+1)
		}

		cases = append(cases, model.CaseRecord{
			OrderNumber:     orderNumber,
			Score:           h.score,
			PriorityIcon:    h.icon,
			PriorityLabel:   h.label,
			Group:           currentGroup,
			CommercialIndex: extractCommercialIndex(h.label, body),
			SourceLine:      body,
			HeaderLine:      h.line,
		})
	}

	return cases
}
