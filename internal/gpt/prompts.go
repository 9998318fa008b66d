package gpt

import (
	"fmt"
	"strings"

	"github.com/hammamikhairi/astra/internal/domain"
)

// System prompts live here so personality changes are a single-file edit.
// Keep them short: every token adds latency before the first sentence.

// PromptSystem sets Astra's persona. Replies are spoken, so no markdown.
const PromptSystem = `Eres Astra, una asistente de voz para el hogar inteligente.
Respondes siempre en español, de forma breve y natural, en una a tres frases.

Reglas:
- Usa solo los datos de sensores que se te dan; si algo no está en los datos, dilo.
- Expresa las temperaturas con un decimal y la humedad sin decimales.
- No uses markdown, listas, emojis ni abreviaturas raras: tu respuesta se lee en voz alta.
- No puedes controlar dispositivos; si te piden actuar, explica qué harías y qué ves en los sensores.`

// sensorContext renders the snapshot as a plain-text block for the model.
func sensorContext(s domain.SensorSnapshot) string {
	var b strings.Builder
	b.WriteString("[Sensores del hogar]\n")
	fmt.Fprintf(&b, "Temperatura: %.1f °C\n", s.Temperature)
	fmt.Fprintf(&b, "Humedad: %.0f %%\n", s.Humidity)
	fmt.Fprintf(&b, "CO2: %.0f ppm\n", s.CO2)
	fmt.Fprintf(&b, "Luz: %.0f lux\n", s.Light)
	fmt.Fprintf(&b, "Energía hoy: %.1f kWh\n", s.Energy)
	fmt.Fprintf(&b, "Agua hoy: %.0f litros\n", s.Water)
	fmt.Fprintf(&b, "Gas: %.0f ppm\n", s.Gas)
	fmt.Fprintf(&b, "Puerta principal: %s\n", openClosed(s.DoorOpen))
	fmt.Fprintf(&b, "Ventana del salón: %s\n", openClosed(s.WindowOpen))
	fmt.Fprintf(&b, "Movimiento: %s\n", yesNo(s.Motion))
	fmt.Fprintf(&b, "Humo: %s\n", yesNo(s.Smoke))
	if !s.TakenAt.IsZero() {
		fmt.Fprintf(&b, "Lectura: %s\n", s.TakenAt.Format("15:04:05"))
	}
	return b.String()
}

func openClosed(open bool) string {
	if open {
		return "abierta"
	}
	return "cerrada"
}

func yesNo(v bool) string {
	if v {
		return "detectado"
	}
	return "no detectado"
}
