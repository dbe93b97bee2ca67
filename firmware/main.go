//go:build tinygo

//go:generate tinygo flash -target=xiao

// Firmware for a single channel telemetry source: it averages an analog
// input and prints one decimal value per line.
package main

import (
	"machine"
	"time"
)

var (
	adc  machine.ADC
	uart = machine.UART0

	// ADC averaging
	adcSum   uint32
	adcCount int

	// Timing
	lastADCRead time.Time

	paused bool
)

func main() {
	PIN_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})

	adc = machine.ADC{Pin: PIN_ADC}
	adc.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	lastADCRead = time.Now()

	for {
		now := time.Now()

		processSerial()

		if now.Sub(lastADCRead) >= time.Duration(SAMPLE_INTERVAL_MS)*time.Millisecond {
			adcSum += uint32(adc.Get())
			adcCount++
			lastADCRead = now
		}

		if adcCount >= NUM_SAMPLES {
			if !paused {
				outputValue(uint16(adcSum/uint32(adcCount)) >> OUTPUT_SHIFT)
			}
			adcSum = 0
			adcCount = 0
		}

		time.Sleep(100 * time.Microsecond)
	}
}

// outputValue prints "value\n".
func outputValue(v uint16) {
	print(v)
	print("\n")
}

// processSerial handles single byte commands: 'p' pauses the output and
// 'r' resumes it.
func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		switch data {
		case 'p':
			paused = true
		case 'r':
			paused = false
			adcSum = 0
			adcCount = 0
		}
	}
}
