package domain

import "time"

// SensorSnapshot is one reading of every (simulated) home sensor.
type SensorSnapshot struct {
	Temperature float64 // °C
	Humidity    float64 // %
	CO2         float64 // ppm
	Light       float64 // lux
	Energy      float64 // kWh today
	Water       float64 // litres today
	Gas         float64 // ppm
	DoorOpen    bool
	WindowOpen  bool
	Motion      bool
	Smoke       bool
	TakenAt     time.Time
}
