package metric

import "fmt"

const (
	NameCommsVersion      = "Properties/Communications Version"
	NameBdSeq             = "bdSeq"
	NameUnits             = "Properties/Units"
	NameFirmwareVersion   = "Properties/Firmware Version"
	NameCalibrationStatus = "Properties/Calibration Status"
	NameADCTemperature    = "Inputs/ADC Internal Temperature"
	NameReboot            = "Node Control/Reboot"
	NameRebirth           = "Node Control/Rebirth"
	NameNextServer        = "Node Control/Next Server"
	NameCalibrationINW    = "Node Control/Calibration INW"
	NameClearCalibration  = "Node Control/Clear Cal Data"

	ThermistorPrefix = "Inputs/THERMISTOR"
	NumThermistors   = 32
)

func NameThermistor(n int) string { return fmt.Sprintf("%s%d", ThermistorPrefix, n) }

// NameCalibrationTemperature n is 1 or 2
func NameCalibrationTemperature(n int) string {
	return fmt.Sprintf("Node Control/Calibration Temperature %d", n)
}

// ThermistorMuxCatalog lists node metrics of the Thermistor Mux firmware.
// Order is display and CSV column order.
func ThermistorMuxCatalog() []Definition {
	defs := make([]Definition, 0, NumThermistors+16)
	for i := 1; i <= NumThermistors; i++ {
		defs = append(defs, NewDefinition(NodeScope, NameThermistor(i), "", true))
	}
	return append(defs,
		NewDefinition(NodeScope, NameADCTemperature, "", true),
		NewDefinition(NodeScope, NameUnits, "", true),
		NewDefinition(NodeScope, NameFirmwareVersion, "", true),
		NewDefinition(NodeScope, NameCommsVersion, "", false),
		NewDefinition(NodeScope, NameBdSeq, "", false),
		NewDefinition(NodeScope, NameReboot, "", false),
		NewDefinition(NodeScope, NameRebirth, "", false),
		NewDefinition(NodeScope, NameNextServer, "", false),
		NewDefinition(NodeScope, NameCalibrationTemperature(1), "", false),
		NewDefinition(NodeScope, NameCalibrationTemperature(2), "", false),
		NewDefinition(NodeScope, NameCalibrationStatus, "", false),
		NewDefinition(NodeScope, NameCalibrationINW, "", false),
		NewDefinition(NodeScope, NameClearCalibration, "", false),
	)
}
