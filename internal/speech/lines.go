// Package speech - lines.go centralises every fixed spoken string.
// Edit this file to change Astra's personality. Keep lines short;
// the TTS engine handles inflection.
package speech

import "math/rand"

// ── Greeting / Global ────────────────────────────────────────────

func LineWelcome() string {
	return "Hola, soy Astra. ¿En qué te ayudo en casa?"
}

func LineBye() string {
	return "Hasta luego."
}

// LineApology is spoken when the chat service fails and no fallback answers.
func LineApology() string {
	return "Lo siento, he tenido un problema al procesar tu petición. Inténtalo de nuevo."
}

// ── Alerts (shown, not spoken) ───────────────────────────────────

func LineMicUnavailable() string {
	return "No puedo acceder al micrófono. Revisa los permisos o el dispositivo de audio."
}

func LineOfflineMode() string {
	return "Modo sin conexión: respuestas de ejemplo, sin voz sintetizada."
}

// ── Listening acknowledgment ─────────────────────────────────────
// Spoken when the wake word fires, so the user knows to start talking.

var listeningFillers = []string{
	"Te escucho.",
	"Dime.",
	"¿Sí?",
	"Aquí estoy.",
}

// LineListening returns a random acknowledgment.
func LineListening() string {
	return listeningFillers[rand.Intn(len(listeningFillers))]
}

// FixedLines returns every fixed spoken line so they can be prefetched
// into the TTS cache at startup.
func FixedLines() []string {
	out := []string{LineWelcome(), LineApology()}
	return append(out, listeningFillers...)
}
