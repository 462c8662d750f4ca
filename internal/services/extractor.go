package services

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"
)

var numberToken = regexp.MustCompile(`-?\$?\d[\d\s\-().,$]*\d|-?\$?\d`)

// SlotDelta carries the slot candidates extracted from one message. Fields
// not mentioned in the message are simply absent. Candidates may still be
// invalid; the validator decides.
type SlotDelta struct {
	Phone     string
	HasPhone  bool
	Amount    float64
	HasAmount bool
}

// Empty reports whether nothing was extracted
func (d SlotDelta) Empty() bool {
	return !d.HasPhone && !d.HasAmount
}

// PriorSlots is the already-accumulated context used to disambiguate bare
// numbers in a new message.
type PriorSlots struct {
	Phone  string
	Amount float64
}

// ExtractionOracle is an external natural-language backend consulted when
// rule-based extraction finds nothing. Implementations own their own
// retry policy; the extractor only bounds the call with a timeout.
type ExtractionOracle interface {
	ExtractSlots(ctx context.Context, text string, prior PriorSlots) (SlotDelta, error)
}

// Extractor turns one free-text message into slot candidates
type Extractor struct {
	oracle        ExtractionOracle
	oracleTimeout time.Duration
}

// NewExtractor creates an extractor. The oracle is optional.
func NewExtractor(oracle ExtractionOracle) *Extractor {
	return &Extractor{
		oracle:        oracle,
		oracleTimeout: 5 * time.Second,
	}
}

// Extract returns the slot candidates found in text. Extraction never
// fails: when nothing can be parsed (and the oracle, if any, times out or
// errors) the delta is empty and the conversation simply reprompts.
func (e *Extractor) Extract(ctx context.Context, text string, prior PriorSlots) SlotDelta {
	delta := extractRuleBased(text)
	if !delta.Empty() || e.oracle == nil {
		return delta
	}

	oracleCtx, cancel := context.WithTimeout(ctx, e.oracleTimeout)
	defer cancel()

	delta, err := e.oracle.ExtractSlots(oracleCtx, text, prior)
	if err != nil {
		log.Printf("Extraction oracle unavailable, continuing without extraction: %v", err)
		return SlotDelta{}
	}
	return delta
}

// extractRuleBased tokenizes the numeric runs in a message and assigns them
// to slots:
//   - a run of 10 digits is a phone; 11 digits keeps its last 10 (numbers
//     typed with a trunk prefix)
//   - with no phone-length run, the last of two or more runs takes the
//     recipient position ("enviar <monto> al <teléfono>") so that a too-short
//     phone still surfaces as a phone candidate and gets a precise reply
//   - the first remaining run is the amount
func extractRuleBased(text string) SlotDelta {
	tokens := numberToken.FindAllString(text, -1)
	if len(tokens) == 0 {
		return SlotDelta{}
	}

	var delta SlotDelta
	phoneIdx := -1

	for i, tok := range tokens {
		if !phoneLike(tok) {
			continue
		}
		digits := digitsOf(tok)
		if len(digits) == phoneDigits {
			delta.Phone, delta.HasPhone = digits, true
			phoneIdx = i
			break
		}
		if len(digits) == phoneDigits+1 {
			delta.Phone, delta.HasPhone = digits[1:], true
			phoneIdx = i
			break
		}
	}

	if !delta.HasPhone && len(tokens) >= 2 {
		// "enviar -5 al 123": the trailing run is the phone attempt
		last := tokens[len(tokens)-1]
		if phoneLike(last) {
			delta.Phone, delta.HasPhone = digitsOf(last), true
			phoneIdx = len(tokens) - 1
		}
	}

	for i, tok := range tokens {
		if i == phoneIdx {
			continue
		}
		if len(digitsOf(tok)) >= phoneDigits {
			continue // phone-length run, never an amount
		}
		if amount, ok := ParseAmount(tok); ok {
			delta.Amount, delta.HasAmount = amount, true
			break
		}
	}

	// a lone run of 12+ digits is a botched phone, never an amount; surface
	// it as a phone candidate so the validator reports the digit count
	if !delta.HasPhone && !delta.HasAmount && len(tokens) == 1 {
		if digits := digitsOf(tokens[0]); phoneLike(tokens[0]) && len(digits) > phoneDigits {
			delta.Phone, delta.HasPhone = digits, true
		}
	}

	return delta
}

// phoneLike rejects tokens that carry money markers (sign, decimal point, $)
func phoneLike(token string) bool {
	if strings.HasPrefix(strings.TrimSpace(token), "-") {
		return false
	}
	return !strings.ContainsAny(token, ".,$")
}

func digitsOf(token string) string {
	var b strings.Builder
	for _, r := range token {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
