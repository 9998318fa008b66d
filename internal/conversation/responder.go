// Package conversation provides the offline keyword responder and the
// plain-terminal observer.
package conversation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/gpt"
	"github.com/hammamikhairi/astra/internal/logger"
)

// Compile-time interface check.
var _ gpt.Responder = (*KeywordResponder)(nil)

// KeywordResponder answers questions with canned Spanish replies chosen
// by keyword, filled in from the current sensor snapshot. Matching is
// case- and accent-insensitive. The same question and snapshot always
// produce the same reply.
type KeywordResponder struct {
	log   *logger.Logger
	rules []replyRule
}

type replyRule struct {
	topic string
	regex *regexp.Regexp
	reply func(s domain.SensorSnapshot) string
}

// NewKeywordResponder creates the offline responder.
func NewKeywordResponder(log *logger.Logger) *KeywordResponder {
	r := &KeywordResponder{log: log}
	r.rules = []replyRule{
		{"control", regexp.MustCompile(`\b(enciende|apaga|abre|cierra|activa|desactiva)\b`), replyControl},
		{"temperatura", regexp.MustCompile(`\b(temperatura|calor|frio|grados|termostato)\b`), replyTemperature},
		{"humedad", regexp.MustCompile(`\b(humedad|humedo|seco)\b`), replyHumidity},
		{"co2", regexp.MustCompile(`\b(co2|aire|ventilar|calidad)\b`), replyAir},
		{"energia", regexp.MustCompile(`\b(energia|consumo|electricidad|kwh|gasto)\b`), replyEnergy},
		{"agua", regexp.MustCompile(`\b(agua|litros)\b`), replyWater},
		{"gas", regexp.MustCompile(`\b(gas|humo|incendio|fuego)\b`), replyGas},
		{"luz", regexp.MustCompile(`\b(luz|luces|iluminacion|oscuro|lux)\b`), replyLight},
		{"puerta", regexp.MustCompile(`\b(puerta|entrada)\b`), replyDoor},
		{"ventana", regexp.MustCompile(`\b(ventana|ventanas)\b`), replyWindow},
		{"movimiento", regexp.MustCompile(`\b(movimiento|alguien|intruso|presencia)\b`), replyMotion},
		{"resumen", regexp.MustCompile(`\b(resumen|estado|como esta la casa|todo bien)\b`), replySummary},
		{"saludo", regexp.MustCompile(`\b(hola|buenos dias|buenas tardes|buenas noches|buenas)\b`), replyGreeting},
		{"gracias", regexp.MustCompile(`\b(gracias|genial|perfecto)\b`), replyThanks},
	}
	return r
}

// Respond returns the canned reply for question.
func (r *KeywordResponder) Respond(question string, s domain.SensorSnapshot) string {
	folded := fold(question)
	r.log.Debug("offline: matching %q", folded)

	for _, rule := range r.rules {
		if rule.regex.MatchString(folded) {
			r.log.Debug("offline: matched topic %s", rule.topic)
			return rule.reply(s)
		}
	}
	return "Ahora mismo estoy en modo sin conexión. Puedo contarte la temperatura, la humedad, " +
		"el aire, la energía, el agua, las puertas y ventanas, o darte un resumen de la casa."
}

// fold lowercases and strips diacritics: "¿Qué tal?" -> "¿que tal?".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func replyControl(s domain.SensorSnapshot) string {
	return "Estoy en modo sin conexión y no puedo controlar dispositivos. " +
		fmt.Sprintf("Lo que sí veo es que la temperatura es de %.1f°C y la puerta está %s.", s.Temperature, openClosed(s.DoorOpen))
}

func replyTemperature(s domain.SensorSnapshot) string {
	return fmt.Sprintf("La temperatura actual es de %.1f°C, con una humedad del %.0f%%.", s.Temperature, s.Humidity)
}

func replyHumidity(s domain.SensorSnapshot) string {
	comment := "Es un nivel cómodo."
	switch {
	case s.Humidity < 35:
		comment = "El ambiente está algo seco."
	case s.Humidity > 60:
		comment = "El ambiente está bastante húmedo."
	}
	return fmt.Sprintf("La humedad es del %.0f%%. %s", s.Humidity, comment)
}

func replyAir(s domain.SensorSnapshot) string {
	quality := "La calidad del aire es buena."
	switch {
	case s.CO2 > 1000:
		quality = "Te recomiendo ventilar."
	case s.CO2 > 800:
		quality = "La calidad del aire es aceptable."
	}
	return fmt.Sprintf("El CO2 está en %.0f ppm. %s", s.CO2, quality)
}

func replyEnergy(s domain.SensorSnapshot) string {
	return fmt.Sprintf("Hoy llevas un consumo de %.1f kWh.", s.Energy)
}

func replyWater(s domain.SensorSnapshot) string {
	return fmt.Sprintf("Hoy se han usado %.0f litros de agua.", s.Water)
}

func replyGas(s domain.SensorSnapshot) string {
	if s.Smoke {
		return fmt.Sprintf("¡Atención! Se detecta humo. El gas está en %.0f ppm.", s.Gas)
	}
	return fmt.Sprintf("No se detecta humo y el gas está en %.0f ppm, dentro de lo normal.", s.Gas)
}

func replyLight(s domain.SensorSnapshot) string {
	return fmt.Sprintf("El nivel de luz es de %.0f lux.", s.Light)
}

func replyDoor(s domain.SensorSnapshot) string {
	return fmt.Sprintf("La puerta principal está %s.", openClosed(s.DoorOpen))
}

func replyWindow(s domain.SensorSnapshot) string {
	return fmt.Sprintf("La ventana del salón está %s.", openClosed(s.WindowOpen))
}

func replyMotion(s domain.SensorSnapshot) string {
	if s.Motion {
		return "Sí, se ha detectado movimiento en casa."
	}
	return "No se detecta movimiento en este momento."
}

func replySummary(s domain.SensorSnapshot) string {
	return fmt.Sprintf("Resumen de la casa: %.1f°C, humedad del %.0f%%, CO2 en %.0f ppm. "+
		"La puerta está %s y la ventana está %s.",
		s.Temperature, s.Humidity, s.CO2, openClosed(s.DoorOpen), openClosed(s.WindowOpen))
}

func replyGreeting(domain.SensorSnapshot) string {
	return "¡Hola! Soy Astra. Pregúntame por la temperatura, la humedad o el estado de la casa."
}

func replyThanks(domain.SensorSnapshot) string {
	return "De nada. Aquí estoy si necesitas algo más."
}

func openClosed(open bool) string {
	if open {
		return "abierta"
	}
	return "cerrada"
}
