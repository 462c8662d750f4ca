package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyIntent(t *testing.T) {
	confirms := []string{
		"confirmo",
		"CONFIRMO",
		"  Confirmo  ",
		"confirmo.",
		"confirmar",
		"sí, confirmo",
		"si confirmo",
	}
	for _, msg := range confirms {
		require.Equal(t, IntentConfirm, ClassifyIntent(msg), "message %q", msg)
	}

	cancels := []string{
		"no",
		"No.",
		"cancelar",
		"cancelo",
		"nope",
		"mejor no, gracias",
		"quiero cancelar la transferencia",
	}
	for _, msg := range cancels {
		require.Equal(t, IntentCancel, ClassifyIntent(msg), "message %q", msg)
	}

	others := []string{
		"confirmo que quiero cambiar el monto a 200", // not a bare confirmation
		"sí",          // affirmative but not the confirm word
		"ok",          // likewise
		"nos vemos",   // contains "no" only as a prefix
		"200",         // slot correction
		"el numero es 3001234567",
	}
	for _, msg := range others {
		require.Equal(t, IntentOther, ClassifyIntent(msg), "message %q", msg)
	}
}
