//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_MS = 1  // ADC read interval in milliseconds
	NUM_SAMPLES        = 10 // Number of samples averaged into one output line

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits
	OUTPUT_SHIFT     = 6    // machine.ADC.Get scales to 16 bits; shift down to 10 bits (0-1023)

	// ADC pin
	PIN_ADC = machine.A1

	// Serial configuration
	// Format "value\n" with value in 0..1023: at most 5 bytes per line.
	// 100 lines/sec * 5 bytes = 500 bytes/sec, well within 115200 baud.
	UART_BAUD_RATE = 115200
)
