package pid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/cartwin/internal/twin/core/model"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestDecodeObject(t *testing.T) {
	body := []byte(`{
		"0C-EngineRPM": 812,
		"0D-VehicleSpeed": "27",
		"42-ControlModuleVolt": "14.2",
		"05-EngineCoolantTemp": 88.5,
		"1C-OBDStandard": "6",
		"99-Unknown": 1
	}`)

	res, err := Decode("wincan/device1", body, now)
	require.NoError(t, err)

	assert.Equal(t, model.Fields{
		"rpm":                    int64(812),
		"vehicle_speed":          int64(27),
		"control_module_voltage": 14.2,
		"coolant_temperature":    88.5,
		"obd_standard":           "6",
	}, res.Sample.Fields)
	assert.Equal(t, now, res.Sample.CapturedAt)
	assert.Equal(t, []string{"99-Unknown"}, res.Unmapped)
	assert.Empty(t, res.Rejected)
}

func TestDecodeObjectRejectsNonScalars(t *testing.T) {
	res, err := Decode("wincan/device1", []byte(`{"0C-EngineRPM": null, "0D-VehicleSpeed": [1], "11-ThrottlePosition": true, "04-CalcEngineLoad": 31}`), now)
	require.NoError(t, err)

	assert.Equal(t, model.Fields{"engine_load": int64(31)}, res.Sample.Fields)
	assert.Equal(t, []string{"0C-EngineRPM", "0D-VehicleSpeed", "11-ThrottlePosition"}, res.Rejected)
}

func TestDecodeObjectAcceptsCanonicalNames(t *testing.T) {
	res, err := Decode("wincan/device1", []byte(`{"rpm": "900"}`), now)
	require.NoError(t, err)
	assert.Equal(t, model.Fields{"rpm": int64(900)}, res.Sample.Fields)
}

func TestDecodeObjectWithoutKnownCodes(t *testing.T) {
	res, err := Decode("wincan/device1", []byte(`{"foo": 1, "bar": 2}`), now)
	assert.ErrorIs(t, err, ErrNoMeasurements)
	require.NotNil(t, res)
	assert.Equal(t, []string{"bar", "foo"}, res.Unmapped)

	_, err = Decode("wincan/device1", []byte(`{}`), now)
	assert.ErrorIs(t, err, ErrNoMeasurements)
}

func TestDecodeScalar(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		body  string
		field string
		want  any
	}{
		{"legacy integer", "wican/rpm", "812", "rpm", int64(812)},
		{"legacy float", "wican/vehicle_speed", " 27.5\n", "vehicle_speed", 27.5},
		{"code as level", "wincan/device1/0C-EngineRPM", "700", "rpm", int64(700)},
		{"quoted number", "wican/rpm", `"650"`, "rpm", int64(650)},
		{"text value", "wican/obd_standard", "EOBD", "obd_standard", "EOBD"},
		{"non-numeric stays text", "wican/rpm", "n/a", "rpm", "n/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode(tt.topic, []byte(tt.body), now)
			require.NoError(t, err)
			assert.Equal(t, model.Fields{tt.field: tt.want}, res.Sample.Fields)
		})
	}
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		body  []byte
	}{
		{"empty", "wican/rpm", []byte("  ")},
		{"invalid utf8", "wican/rpm", []byte{0xff, 0xfe}},
		{"scalar on device topic", "wincan/device1", []byte("812")},
		{"broken json on device topic", "wincan/device1", []byte(`{"0C-EngineRPM": `)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode(tt.topic, tt.body, now)
			assert.ErrorIs(t, err, ErrUndecodable)
			assert.Nil(t, res)
		})
	}
}

func TestCoerceString(t *testing.T) {
	assert.Equal(t, int64(42), coerceString("42"))
	assert.Equal(t, int64(-3), coerceString("-3"))
	assert.Equal(t, 0.5, coerceString(".5"))
	assert.Equal(t, "1e5", coerceString("1e5"))
	assert.Equal(t, "1.2.3", coerceString("1.2.3"))
}

func TestTable(t *testing.T) {
	entries := Table()
	assert.Len(t, entries, 41)

	seen := map[string]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.Field], "duplicate field %s", e.Field)
		seen[e.Field] = true
		assert.NotEmpty(t, e.PID())
	}

	e, ok := LookupCode("0D-VehicleSpeed")
	require.True(t, ok)
	assert.Equal(t, "vehicle_speed", e.Field)
	assert.Equal(t, "0D", e.PID())

	_, ok = LookupField("nope")
	assert.False(t, ok)
	assert.Len(t, Fields(), 41)
}
