// Package redact detects and masks personally identifiable information in
// request and log text, with an intra-request reversible placeholder map.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// kind names the PII category a pattern detects; it becomes the placeholder
// prefix, e.g. "⟨EMAIL_1⟩".
type kind string

const (
	kindEmail   kind = "EMAIL"
	kindPhone   kind = "PHONE"
	kindSSN     kind = "SSN"
	kindCard    kind = "CREDIT_CARD"
	kindIPv4    kind = "IPV4"
	kindDate    kind = "DATE"
	kindAddress kind = "ADDRESS"
	kindPassport kind = "PASSPORT"
)

type detector struct {
	kind    kind
	pattern *regexp.Regexp
}

// patterns is the fixed, ordered detector list. Order matters: more
// specific patterns (SSN, credit card) are tried before patterns they could
// otherwise be mistaken for (phone numbers).
var patterns = []detector{
	{kindSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{kindCard, regexp.MustCompile(`\b(?:\d[ -]?){15}\d\b`)},
	{kindEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{kindPhone, regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)},
	{kindIPv4, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)},
	{kindDate, regexp.MustCompile(`\b(?:\d{1,2}/\d{1,2}/\d{4}|\d{1,2}-\d{1,2}-\d{2})\b`)},
	{kindAddress, regexp.MustCompile(`\b\d+\s+[A-Z][a-zA-Z]*(?:\s[A-Z][a-zA-Z]*)*\s(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way)\b`)},
	{kindPassport, regexp.MustCompile(`\b[A-Z]{1,2}\d{6,9}\b`)},
}

// Map maps placeholder tokens to the original substrings they replaced. It
// is discarded once the response that needed it has been produced.
type Map map[string]string

// Redact detects every PII span in text and replaces it with a placeholder
// token, returning the masked text and the map needed to restore it.
// Reversibility is intra-request only.
func Redact(text string) (string, Map) {
	masked := text
	m := make(Map)
	counts := make(map[kind]int)

	for _, d := range patterns {
		masked = d.pattern.ReplaceAllStringFunc(masked, func(match string) string {
			counts[d.kind]++
			placeholder := fmt.Sprintf("⟨%s_%d⟩", d.kind, counts[d.kind])
			m[placeholder] = match
			return placeholder
		})
	}
	return masked, m
}

// Unredact restores every placeholder in text using m. Placeholders not
// present in m are left untouched.
func Unredact(text string, m Map) string {
	if len(m) == 0 {
		return text
	}
	out := text
	for placeholder, original := range m {
		out = strings.ReplaceAll(out, placeholder, original)
	}
	return out
}
