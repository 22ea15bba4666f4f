package pid

import (
	"slices"
	"strings"
)

// Kind is the value type a measurement is expected to carry.
type Kind string

const (
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindText    Kind = "text"
)

// Entry describes one OBD-II measurement code.
type Entry struct {
	// Code is the key used by the adapter's JSON payload, e.g. "0C-EngineRPM".
	Code string
	// Field is the canonical measurement name, e.g. "rpm".
	Field       string
	Kind        Kind
	Description string
}

// PID returns the hexadecimal mode 01 PID prefix of the code.
func (e Entry) PID() string {
	pid, _, _ := strings.Cut(e.Code, "-")
	return pid
}

var table = []Entry{
	{"01-MonitorStatus", "monitor_status", KindText, "Monitor status since DTCs cleared"},
	{"04-CalcEngineLoad", "engine_load", KindNumber, "Calculated engine load (%)"},
	{"05-EngineCoolantTemp", "coolant_temperature", KindNumber, "Engine coolant temperature (°C)"},
	{"0B-IntakeManiAbsPress", "intake_pressure", KindNumber, "Intake manifold absolute pressure (kPa)"},
	{"0C-EngineRPM", "rpm", KindNumber, "Engine speed (rpm)"},
	{"0D-VehicleSpeed", "vehicle_speed", KindNumber, "Vehicle speed (km/h)"},
	{"0F-IntakeAirTemperature", "intake_air_temp", KindNumber, "Intake air temperature (°C)"},
	{"10-MAFAirFlowRate", "maf_airflow", KindNumber, "Mass air flow rate (g/s)"},
	{"11-ThrottlePosition", "throttle_position", KindNumber, "Throttle position (%)"},
	{"13-OxySensorsPresent_2Banks", "oxygen_sensors_present_banks", KindInteger, "Oxygen sensors present (2 banks)"},
	{"1C-OBDStandard", "obd_standard", KindText, "OBD standard this vehicle conforms to"},
	{"1F-TimeSinceEngStart", "time_since_engine_start", KindInteger, "Run time since engine start (s)"},
	{"20-PIDsSupported_21_40", "pids_supported_21_40", KindText, "PIDs supported [21 - 40]"},
	{"21-DistanceMILOn", "distance_mil_on", KindNumber, "Distance traveled with MIL on (km)"},
	{"23-FuelRailGaug", "fuel_rail_pressure", KindNumber, "Fuel rail gauge pressure (kPa)"},
	{"24-OxySensor1_FAER", "oxygen_sensor1_faer", KindNumber, "Oxygen sensor 1 fuel-air equivalence ratio"},
	{"24-OxySensor1_Volt", "oxygen_sensor1_voltage", KindNumber, "Oxygen sensor 1 voltage (V)"},
	{"25-OxySensor2_FAER", "oxygen_sensor2_faer", KindNumber, "Oxygen sensor 2 fuel-air equivalence ratio"},
	{"30-WarmUpsSinceCodeClear", "warmups_since_code_clear", KindInteger, "Warm-ups since codes cleared"},
	{"31-DistanceSinceCodeClear", "distance_since_code_clear", KindNumber, "Distance traveled since codes cleared (km)"},
	{"33-AbsBaroPres", "absolute_barometric_pressure", KindNumber, "Absolute barometric pressure (kPa)"},
	{"40-PIDsSupported_41_60", "pids_supported_41_60", KindText, "PIDs supported [41 - 60]"},
	{"41-MonStatusDriveCycle", "monitor_status_drive_cycle", KindText, "Monitor status this drive cycle"},
	{"42-ControlModuleVolt", "control_module_voltage", KindNumber, "Control module voltage (V)"},
	{"45-RelThrottlePos", "relative_throttle_position", KindNumber, "Relative throttle position (%)"},
	{"46-AmbientAirTemp", "ambient_air_temperature", KindNumber, "Ambient air temperature (°C)"},
	{"49-AbsThrottlePosD", "abs_throttle_position_d", KindNumber, "Accelerator pedal position D (%)"},
	{"4A-AbsThrottlePosE", "abs_throttle_position_e", KindNumber, "Accelerator pedal position E (%)"},
	{"4C-CmdThrottleAct", "commanded_throttle_actuator", KindNumber, "Commanded throttle actuator (%)"},
	{"4F-Max_FAER", "max_faer", KindNumber, "Maximum fuel-air equivalence ratio"},
	{"4F-Max_OxySensVol", "max_oxy_sensor_voltage", KindNumber, "Maximum oxygen sensor voltage (V)"},
	{"4F-Max_OxySensCrnt", "max_oxy_sensor_current", KindNumber, "Maximum oxygen sensor current (mA)"},
	{"4F-Max_IntManiAbsPres", "max_intake_pressure", KindNumber, "Maximum intake manifold absolute pressure (kPa)"},
	{"60-PIDsSupported_61_80", "pids_supported_61_80", KindText, "PIDs supported [61 - 80]"},
	{"67-EngineCoolantTemp1", "engine_coolant_temp1", KindNumber, "Engine coolant temperature sensor 1 (°C)"},
	{"67-EngineCoolantTemp2", "engine_coolant_temp2", KindNumber, "Engine coolant temperature sensor 2 (°C)"},
	{"69-CmdEGR_EGRError", "egr_commanded_error", KindNumber, "Commanded EGR and EGR error (%)"},
	{"77-ChargeAirCoolerTemperature", "charge_air_cooler_temp", KindNumber, "Charge air cooler temperature (°C)"},
	{"78-EGT_Bank1", "egt_bank1", KindNumber, "Exhaust gas temperature bank 1 (°C)"},
	{"80-PIDsSupported_81_A0", "pids_supported_81_a0", KindText, "PIDs supported [81 - A0]"},
	{"8B-DieselAftertreatment", "diesel_aftertreatment", KindNumber, "Diesel aftertreatment status"},
}

var (
	byCode  = make(map[string]Entry, len(table))
	byField = make(map[string]Entry, len(table))
)

func init() {
	for _, e := range table {
		byCode[e.Code] = e
		byField[e.Field] = e
	}
}

// Table returns every known measurement, ordered by code.
func Table() []Entry {
	out := slices.Clone(table)
	slices.SortStableFunc(out, func(a, b Entry) int { return strings.Compare(a.Code, b.Code) })
	return out
}

// Fields returns the canonical field names in table order.
func Fields() []string {
	out := make([]string, len(table))
	for i, e := range table {
		out[i] = e.Field
	}
	return out
}

// LookupCode resolves an adapter measurement code.
func LookupCode(code string) (Entry, bool) {
	e, ok := byCode[code]
	return e, ok
}

// LookupField resolves a canonical field name.
func LookupField(field string) (Entry, bool) {
	e, ok := byField[field]
	return e, ok
}

// resolve accepts either a code or a canonical field name.
func resolve(key string) (Entry, bool) {
	if e, ok := byCode[key]; ok {
		return e, true
	}
	return LookupField(key)
}
