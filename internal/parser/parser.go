// Package parser extracts structured payment fields from raw bank/wallet
// SMS text. Extraction is best-effort: every field is independently
// optional and a miss on one never blocks the others. Parse has no side
// effects.
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"nexstore/internal/money"
)

// Parsed is the best-effort result of parsing one notification.
// AmountPaisa is nil when no amount could be extracted.
type Parsed struct {
	AmountPaisa *int64
	Last3Digits string
	RRN         string
	Method      string
	Remark      string
}

var (
	amountRe = regexp.MustCompile(`(?i)Rs\.?\s*([0-9,]+\.?[0-9]*)`)

	// Masked account patterns, tried in priority order. First match wins.
	last3Res = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\d+[*X]+(\d{3})\b`),        // 900****910, 98XXXXX910
		regexp.MustCompile(`(?i)[X*]+(\d{3})\b`),           // XXX****910
		regexp.MustCompile(`(?i)from\s+\S*?(\d{3})\s+for`), // from xxx910 for
	}

	rrnRe = regexp.MustCompile(`(?i)RRN\s*[:\-]?\s*([A-Za-z0-9]+)`)
)

// Parse extracts payment fields from a raw notification.
func Parse(raw string) Parsed {
	var p Parsed

	if m := amountRe.FindStringSubmatch(raw); m != nil {
		if rupees, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			amount := money.RupeesToPaisa(rupees)
			p.AmountPaisa = &amount
		}
	}

	for _, re := range last3Res {
		if m := re.FindStringSubmatch(raw); m != nil {
			p.Last3Digits = m[1]
			break
		}
	}

	if m := rrnRe.FindStringSubmatch(raw); m != nil {
		p.RRN = m[1]
	}

	// Remark and method ride after the last comma as "remark /Method".
	if idx := strings.LastIndex(raw, ","); idx >= 0 {
		last := strings.TrimSpace(raw[idx+1:])
		if strings.Contains(last, "/") {
			parts := strings.Split(last, "/")
			if len(parts) >= 2 {
				p.Remark = strings.TrimSpace(parts[0])
				p.Method = strings.TrimSpace(parts[len(parts)-1])
			}
		}
	}

	return p
}

// Fingerprint returns the stable content hash of a notification, used to
// reject exact resubmissions.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
