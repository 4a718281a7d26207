package inverter

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/goburrow/modbus"
)

// Modbus client configuration
const (
	DefaultSlaveAddress = 1
	MinSlaveAddress     = 1
	MaxSlaveAddress     = 246
)

// SunSpec inverter model register offsets (model 101/103, holding registers).
// The base address is the start of the inverter model block after the
// "SunS" marker and common model.
const (
	DefaultModelBase = 40070

	regACCurrent      = 2  // uint16, A
	regACCurrentSF    = 6  // int16 scale factor
	regACVoltageAN    = 10 // uint16, V
	regACVoltageSF    = 13 // int16 scale factor
	regACPower        = 14 // int16, W
	regACPowerSF      = 15 // int16 scale factor
	regACFrequency    = 16 // uint16, Hz
	regACFrequencySF  = 17 // int16 scale factor
	regACEnergyWh     = 24 // uint32 acc, Wh
	regACEnergySF     = 26 // int16 scale factor
	regDCPower        = 30 // int16, W
	regDCPowerSF      = 31 // int16 scale factor
	regCabTemperature = 33 // int16, °C
	regTemperatureSF  = 37 // int16 scale factor
	regOperatingState = 38 // uint16 enum
	modelBlockLen     = 40
)

// Operating states per the SunSpec inverter model
const (
	StateOff          = 1
	StateSleeping     = 2
	StateStarting     = 3
	StateMPPT         = 4
	StateThrottled    = 5
	StateShuttingDown = 6
	StateFault        = 7
	StateStandby      = 8
)

// ModbusClient reads a SunSpec-compatible PV inverter over Modbus
type ModbusClient struct {
	client     modbus.Client
	handler    *modbus.RTUClientHandler
	tcpHandler *modbus.TCPClientHandler
	modelBase  uint16
}

// NewTCPClient connects to an inverter over Modbus TCP
func NewTCPClient(address string, slaveID byte) (*ModbusClient, error) {
	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = 1 * time.Second

	err := handler.Connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %v", err)
	}

	return &ModbusClient{
		client:     modbus.NewClient(handler),
		tcpHandler: handler,
		modelBase:  DefaultModelBase,
	}, nil
}

// NewRTUClient connects to an inverter over Modbus RTU
func NewRTUClient(device string, baudRate int, slaveID byte) (*ModbusClient, error) {
	handler := modbus.NewRTUClientHandler(device)
	handler.BaudRate = baudRate
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.SlaveId = slaveID
	handler.Timeout = 1 * time.Second

	err := handler.Connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %v", err)
	}

	return &ModbusClient{
		client:    modbus.NewClient(handler),
		handler:   handler,
		modelBase: DefaultModelBase,
	}, nil
}

// SetModelBase overrides the inverter model block base address for devices
// that map it somewhere other than the default
func (c *ModbusClient) SetModelBase(base uint16) {
	c.modelBase = base
}

// Close closes the Modbus connection
func (c *ModbusClient) Close() error {
	if c.handler != nil {
		return c.handler.Close()
	}
	if c.tcpHandler != nil {
		return c.tcpHandler.Close()
	}
	return nil
}

// Helper functions for data conversion
func bytesToU16(data []byte) uint16 {
	return binary.BigEndian.Uint16(data)
}

func bytesToS16(data []byte) int16 {
	return int16(binary.BigEndian.Uint16(data))
}

func bytesToU32(data []byte) uint32 {
	return binary.BigEndian.Uint32(data)
}

// scaled applies a SunSpec base-10 scale factor to a raw register value
func scaled(value float64, sf int16) float64 {
	return value * math.Pow10(int(sf))
}

// Readings holds a single inverter measurement sample
type Readings struct {
	ACPowerW       float64
	DCPowerW       float64
	ACCurrentA     float64
	ACVoltageV     float64
	FrequencyHz    float64
	LifetimeWh     float64
	TemperatureC   float64
	OperatingState uint16
}

// ReadInverter reads the full inverter model block and decodes it
func (c *ModbusClient) ReadInverter() (*Readings, error) {
	data, err := c.client.ReadHoldingRegisters(c.modelBase, modelBlockLen)
	if err != nil {
		return nil, fmt.Errorf("failed to read inverter model block: %v", err)
	}
	if len(data) < modelBlockLen*2 {
		return nil, fmt.Errorf("short read: got %d bytes, want %d", len(data), modelBlockLen*2)
	}

	at := func(reg int) []byte { return data[reg*2 : reg*2+4] }

	r := &Readings{
		ACCurrentA:     scaled(float64(bytesToU16(at(regACCurrent))), bytesToS16(at(regACCurrentSF))),
		ACVoltageV:     scaled(float64(bytesToU16(at(regACVoltageAN))), bytesToS16(at(regACVoltageSF))),
		ACPowerW:       scaled(float64(bytesToS16(at(regACPower))), bytesToS16(at(regACPowerSF))),
		FrequencyHz:    scaled(float64(bytesToU16(at(regACFrequency))), bytesToS16(at(regACFrequencySF))),
		LifetimeWh:     scaled(float64(bytesToU32(at(regACEnergyWh))), bytesToS16(at(regACEnergySF))),
		DCPowerW:       scaled(float64(bytesToS16(at(regDCPower))), bytesToS16(at(regDCPowerSF))),
		TemperatureC:   scaled(float64(bytesToS16(at(regCabTemperature))), bytesToS16(at(regTemperatureSF))),
		OperatingState: bytesToU16(at(regOperatingState)),
	}
	return r, nil
}

// ReadACPower reads only the AC power register pair. Cheaper than a full
// block read when polling frequently.
func (c *ModbusClient) ReadACPower() (float64, error) {
	data, err := c.client.ReadHoldingRegisters(c.modelBase+regACPower, 2)
	if err != nil {
		return 0, fmt.Errorf("failed to read AC power: %v", err)
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("short read: got %d bytes, want 4", len(data))
	}
	raw := bytesToS16(data[0:2])
	sf := bytesToS16(data[2:4])
	return scaled(float64(raw), sf), nil
}
