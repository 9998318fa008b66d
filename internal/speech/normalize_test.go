package speech

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hace 22.5°C en casa.", "Hace 22 punto 5 grados en casa."},
		{"Hace 22°C.", "Hace 22 grados."},
		{"Estamos a 21 ° hoy", "Estamos a 21 grados hoy"},
		{"La humedad es 55%.", "La humedad es 55 porciento."},
		{"La humedad es 55 %.", "La humedad es 55 porciento."},
		{"El CO2 marca 410.5 ppm.", "El CO2 marca 410 punto 5 ppm."},
		{"Llevas 3.2 kWh hoy.", "Llevas 3 punto 2 kilovatios hora hoy."},
		{"Bueno... veamos…", "Bueno veamos"},
		{"**Todo** en orden", "Todo en orden"},
		{"Sin cambios.", "Sin cambios."},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
