package services

import (
	"strings"
)

// Intent is the coarse classification of a message while a confirmation
// is pending. It is a fixed vocabulary match, not a re-extraction.
type Intent int

const (
	IntentOther Intent = iota
	IntentConfirm
	IntentCancel
)

// confirmPhrases must match the whole message: a transfer is only ever
// dispatched on an unambiguous affirmative turn.
var confirmPhrases = map[string]struct{}{
	"confirmo":     {},
	"confirmar":    {},
	"si confirmo":  {},
	"sí confirmo":  {},
	"si, confirmo": {},
	"sí, confirmo": {},
}

var cancelWords = map[string]struct{}{
	"no":       {},
	"cancelo":  {},
	"cancelar": {},
	"cancel":   {},
	"nope":     {},
}

// ClassifyIntent classifies a message as confirm, cancel or other
func ClassifyIntent(message string) Intent {
	cleaned := strings.ToLower(strings.TrimSpace(message))
	cleaned = strings.TrimRight(cleaned, ".!")

	if _, ok := confirmPhrases[cleaned]; ok {
		return IntentConfirm
	}
	for _, word := range strings.Fields(cleaned) {
		if _, ok := cancelWords[strings.Trim(word, ".,!¡¿?")]; ok {
			return IntentCancel
		}
	}
	return IntentOther
}
