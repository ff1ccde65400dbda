package obd

import "fmt"

// Mode 01 PIDs handled by NormalizeData.
const (
	PIDMonitor                   byte = 0x01
	PIDEngineLoad                byte = 0x04
	PIDCoolantTemp               byte = 0x05
	PIDShortTermFuelTrim1        byte = 0x06
	PIDLongTermFuelTrim1         byte = 0x07
	PIDShortTermFuelTrim2        byte = 0x08
	PIDLongTermFuelTrim2         byte = 0x09
	PIDFuelPressure              byte = 0x0A
	PIDIntakeMAP                 byte = 0x0B
	PIDEngineRPM                 byte = 0x0C
	PIDVehicleSpeed              byte = 0x0D
	PIDTimingAdvance             byte = 0x0E
	PIDIntakeTemp                byte = 0x0F
	PIDMAFFlow                   byte = 0x10
	PIDThrottle                  byte = 0x11
	PIDAuxInput                  byte = 0x1E
	PIDRuntime                   byte = 0x1F
	PIDDistanceWithMIL           byte = 0x21
	PIDFuelRailPressure          byte = 0x59
	PIDCommandedEGR              byte = 0x2C
	PIDEGRError                  byte = 0x2D
	PIDCommandedEvapPurge        byte = 0x2E
	PIDFuelLevel                 byte = 0x2F
	PIDWarmUps                   byte = 0x30
	PIDDistance                  byte = 0x31
	PIDEvapVaporPressure         byte = 0x32
	PIDBarometric                byte = 0x33
	PIDCatalystTempB1S1          byte = 0x3C
	PIDCatalystTempB2S1          byte = 0x3D
	PIDCatalystTempB1S2          byte = 0x3E
	PIDCatalystTempB2S2          byte = 0x3F
	PIDControlModuleVoltage      byte = 0x42
	PIDAbsoluteEngineLoad        byte = 0x43
	PIDAirFuelEquivRatio         byte = 0x44
	PIDRelativeThrottlePos       byte = 0x45
	PIDAmbientTemp               byte = 0x46
	PIDAbsoluteThrottlePosB      byte = 0x47
	PIDAbsoluteThrottlePosC      byte = 0x48
	PIDAccPedalPosD              byte = 0x49
	PIDAccPedalPosE              byte = 0x4A
	PIDAccPedalPosF              byte = 0x4B
	PIDCommandedThrottleActuator byte = 0x4C
	PIDTimeWithMIL               byte = 0x4D
	PIDTimeSinceCodesCleared     byte = 0x4E
	PIDEthanolFuel               byte = 0x52
	PIDHybridBatteryPercentage   byte = 0x5B
	PIDEngineOilTemp             byte = 0x5C
	PIDFuelInjectionTiming       byte = 0x5D
	PIDEngineFuelRate            byte = 0x5E
	PIDEngineTorqueDemanded      byte = 0x61
	PIDEngineTorquePercentage    byte = 0x62
	PIDEngineRefTorque           byte = 0x63
)

// Pseudo PIDs for adapter sensors. They are read through dedicated AT
// commands, never through a mode 01 query.
const (
	PIDAccelerometer byte = 0xF0
	PIDGyroscope     byte = 0xF1
	PIDDeviceTemp    byte = 0xF2
)

// PIDInfo describes a PID for display.
type PIDInfo struct {
	Name string
	Unit string
}

var pidInfo = map[byte]PIDInfo{
	PIDMonitor:                   {"Monitor status since DTCs cleared", ""},
	PIDEngineLoad:                {"Calculated engine load", "%"},
	PIDCoolantTemp:               {"Engine coolant temperature", "°C"},
	PIDShortTermFuelTrim1:        {"Short term fuel trim bank 1", "%"},
	PIDLongTermFuelTrim1:         {"Long term fuel trim bank 1", "%"},
	PIDShortTermFuelTrim2:        {"Short term fuel trim bank 2", "%"},
	PIDLongTermFuelTrim2:         {"Long term fuel trim bank 2", "%"},
	PIDFuelPressure:              {"Fuel pressure", "kPa"},
	PIDIntakeMAP:                 {"Intake manifold absolute pressure", "kPa"},
	PIDEngineRPM:                 {"Engine RPM", "rpm"},
	PIDVehicleSpeed:              {"Vehicle speed", "km/h"},
	PIDTimingAdvance:             {"Timing advance", "°"},
	PIDIntakeTemp:                {"Intake air temperature", "°C"},
	PIDMAFFlow:                   {"MAF air flow rate", "g/s"},
	PIDThrottle:                  {"Throttle position", "%"},
	PIDAuxInput:                  {"Auxiliary input status", ""},
	PIDRuntime:                   {"Run time since engine start", "s"},
	PIDDistanceWithMIL:           {"Distance traveled with MIL on", "km"},
	PIDFuelRailPressure:          {"Fuel rail absolute pressure", "kPa"},
	PIDCommandedEGR:              {"Commanded EGR", "%"},
	PIDEGRError:                  {"EGR error", "%"},
	PIDCommandedEvapPurge:        {"Commanded evaporative purge", "%"},
	PIDFuelLevel:                 {"Fuel tank level input", "%"},
	PIDWarmUps:                   {"Warm-ups since codes cleared", ""},
	PIDDistance:                  {"Distance traveled since codes cleared", "km"},
	PIDEvapVaporPressure:         {"Evap. system vapor pressure", "Pa"},
	PIDBarometric:                {"Absolute barometric pressure", "kPa"},
	PIDCatalystTempB1S1:          {"Catalyst temperature bank 1 sensor 1", "°C"},
	PIDCatalystTempB2S1:          {"Catalyst temperature bank 2 sensor 1", "°C"},
	PIDCatalystTempB1S2:          {"Catalyst temperature bank 1 sensor 2", "°C"},
	PIDCatalystTempB2S2:          {"Catalyst temperature bank 2 sensor 2", "°C"},
	PIDControlModuleVoltage:      {"Control module voltage", "V"},
	PIDAbsoluteEngineLoad:        {"Absolute load value", "%"},
	PIDAirFuelEquivRatio:         {"Commanded air-fuel equivalence ratio", "%"},
	PIDRelativeThrottlePos:       {"Relative throttle position", "%"},
	PIDAmbientTemp:               {"Ambient air temperature", "°C"},
	PIDAbsoluteThrottlePosB:      {"Absolute throttle position B", "%"},
	PIDAbsoluteThrottlePosC:      {"Absolute throttle position C", "%"},
	PIDAccPedalPosD:              {"Accelerator pedal position D", "%"},
	PIDAccPedalPosE:              {"Accelerator pedal position E", "%"},
	PIDAccPedalPosF:              {"Accelerator pedal position F", "%"},
	PIDCommandedThrottleActuator: {"Commanded throttle actuator", "%"},
	PIDTimeWithMIL:               {"Time run with MIL on", "min"},
	PIDTimeSinceCodesCleared:     {"Time since trouble codes cleared", "min"},
	PIDEthanolFuel:               {"Ethanol fuel", "%"},
	PIDHybridBatteryPercentage:   {"Hybrid battery pack remaining life", "%"},
	PIDEngineOilTemp:             {"Engine oil temperature", "°C"},
	PIDFuelInjectionTiming:       {"Fuel injection timing", "°"},
	PIDEngineFuelRate:            {"Engine fuel rate", "L/h"},
	PIDEngineTorqueDemanded:      {"Driver's demand engine torque", "%"},
	PIDEngineTorquePercentage:    {"Actual engine torque", "%"},
	PIDEngineRefTorque:           {"Engine reference torque", "Nm"},
	PIDAccelerometer:             {"Adapter accelerometer", ""},
	PIDGyroscope:                 {"Adapter gyroscope", ""},
	PIDDeviceTemp:                {"Adapter temperature", "°C"},
}

// Lookup returns display information for pid. Unknown PIDs get a generic name.
func Lookup(pid byte) PIDInfo {
	if info, ok := pidInfo[pid]; ok {
		return info
	}
	return PIDInfo{Name: fmt.Sprintf("PID %02X", pid)}
}

// IsPseudoPID reports whether pid names an adapter sensor rather than a
// vehicle parameter.
func IsPseudoPID(pid byte) bool {
	return pid >= PIDAccelerometer && pid <= PIDDeviceTemp
}
