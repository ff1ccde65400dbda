package obd

// NormalizeData converts the hex payload of a mode 01 reply into the PID's
// physical unit. data starts at the first data byte, e.g. "1A F8" for
// "41 0C 1A F8".
func NormalizeData(pid byte, data []byte) int {
	return normalize(pid, data, false)
}

// normalizeLegacy reproduces the adapter firmware table, where the monitor
// status case has no break and ends up in the RPM formula.
func normalizeLegacy(pid byte, data []byte) int {
	return normalize(pid, data, true)
}

func smallValue(data []byte) int { return int(HexToU8(data)) }

func largeValue(data []byte) int { return int(HexToU16(data)) }

func temperatureValue(data []byte) int { return smallValue(data) - 40 }

func percentageValue(data []byte) int { return smallValue(data) * 100 / 255 }

func normalize(pid byte, data []byte, legacyMonitor bool) int {
	switch pid {
	case PIDMonitor:
		if legacyMonitor {
			return largeValue(data) >> 2
		}
		return smallValue(data)
	case PIDEngineRPM, PIDEvapVaporPressure:
		return largeValue(data) >> 2
	case PIDFuelPressure:
		return smallValue(data) * 3
	case PIDCoolantTemp, PIDIntakeTemp, PIDAmbientTemp, PIDEngineOilTemp:
		return temperatureValue(data)
	case PIDThrottle, PIDCommandedEGR, PIDCommandedEvapPurge, PIDFuelLevel,
		PIDRelativeThrottlePos, PIDAbsoluteThrottlePosB, PIDAbsoluteThrottlePosC,
		PIDAccPedalPosD, PIDAccPedalPosE, PIDAccPedalPosF, PIDCommandedThrottleActuator,
		PIDEngineLoad, PIDAbsoluteEngineLoad, PIDEthanolFuel, PIDHybridBatteryPercentage:
		return percentageValue(data)
	case PIDMAFFlow:
		return largeValue(data) / 100
	case PIDTimingAdvance:
		return smallValue(data)/2 - 64
	case PIDDistance, PIDDistanceWithMIL, PIDTimeWithMIL, PIDTimeSinceCodesCleared,
		PIDRuntime, PIDFuelRailPressure, PIDEngineRefTorque:
		return largeValue(data)
	case PIDControlModuleVoltage:
		return largeValue(data) / 1000
	case PIDEngineFuelRate:
		return largeValue(data) / 20
	case PIDEngineTorqueDemanded, PIDEngineTorquePercentage:
		return smallValue(data) - 125
	case PIDShortTermFuelTrim1, PIDLongTermFuelTrim1, PIDShortTermFuelTrim2,
		PIDLongTermFuelTrim2, PIDEGRError:
		return (smallValue(data) - 128) * 100 / 128
	case PIDFuelInjectionTiming:
		return (largeValue(data) - 26880) / 128
	case PIDCatalystTempB1S1, PIDCatalystTempB2S1, PIDCatalystTempB1S2, PIDCatalystTempB2S2:
		return largeValue(data)/10 - 40
	case PIDAirFuelEquivRatio:
		return largeValue(data) * 200 / 65536
	default:
		return smallValue(data)
	}
}
