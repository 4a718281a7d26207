package inverter

import (
	"fmt"
)

// ShowInverterInfo connects to the inverter, reads a sample, and prints it
// in a formatted table
func ShowInverterInfo(modbusAddress string) error {
	if modbusAddress == "" {
		return fmt.Errorf("InverterModbusAddress is not configured")
	}

	client, err := NewTCPClient(modbusAddress, DefaultSlaveAddress)
	if err != nil {
		return fmt.Errorf("error connecting to inverter modbus server at %s: %w", modbusAddress, err)
	}
	defer client.Close()

	r, err := client.ReadInverter()
	if err != nil {
		return fmt.Errorf("error reading inverter: %w", err)
	}

	fmt.Println()
	fmt.Println("==================== INVERTER READINGS ====================")
	fmt.Println()
	fmt.Printf("  Operating State:       %s\n", OperatingStateString(r.OperatingState))
	fmt.Printf("  AC Power:              %.1f W\n", r.ACPowerW)
	fmt.Printf("  DC Power:              %.1f W\n", r.DCPowerW)
	fmt.Printf("  AC Current:            %.2f A\n", r.ACCurrentA)
	fmt.Printf("  AC Voltage (A-N):      %.1f V\n", r.ACVoltageV)
	fmt.Printf("  Frequency:             %.2f Hz\n", r.FrequencyHz)
	fmt.Printf("  Cabinet Temperature:   %.1f C\n", r.TemperatureC)
	fmt.Printf("  Lifetime Production:   %.1f kWh\n", r.LifetimeWh/1000.0)
	fmt.Println()

	return nil
}

// OperatingStateString returns a human readable name for a SunSpec
// inverter operating state
func OperatingStateString(state uint16) string {
	switch state {
	case StateOff:
		return "Off"
	case StateSleeping:
		return "Sleeping"
	case StateStarting:
		return "Starting"
	case StateMPPT:
		return "Producing (MPPT)"
	case StateThrottled:
		return "Producing (throttled)"
	case StateShuttingDown:
		return "Shutting down"
	case StateFault:
		return "Fault"
	case StateStandby:
		return "Standby"
	default:
		return fmt.Sprintf("Unknown (%d)", state)
	}
}
