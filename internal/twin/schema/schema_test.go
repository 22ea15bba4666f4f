package schema

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/internal/twin/pid"
)

func readUp(t *testing.T, version uint) string {
	t.Helper()
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	r, _, err := src.ReadUp(version)
	require.NoError(t, err)
	defer r.Close()

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(body)
}

func TestMigrationsAreSequential(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	for _, v := range []uint{1, 2} {
		r, _, err := src.ReadDown(v)
		require.NoError(t, err, "version %d has no down migration", v)
		r.Close()
	}
}

func TestDeviceMigrationAllowsKnownStatuses(t *testing.T) {
	up := readUp(t, 1)
	for _, s := range []model.DeviceStatus{model.DeviceActive, model.DeviceInactive, model.DeviceMaintenance} {
		assert.Contains(t, up, "'"+string(s)+"'")
	}
	assert.Contains(t, up, "WHERE is_active")
}

func TestTelemetryMigrationHasColumnPerField(t *testing.T) {
	up := readUp(t, 2)

	types := map[pid.Kind]string{
		pid.KindNumber:  "DOUBLE PRECISION",
		pid.KindInteger: "BIGINT",
		pid.KindText:    "TEXT",
	}
	columns := map[string]string{}
	for _, line := range strings.Split(up, "\n") {
		f := strings.Fields(strings.TrimSuffix(strings.TrimSpace(line), ","))
		if len(f) >= 2 {
			columns[f[0]] = strings.Join(f[1:], " ")
		}
	}

	for _, e := range pid.Table() {
		assert.Equal(t, types[e.Kind], columns[e.Field], e.Field)
	}
	assert.Equal(t, "TIMESTAMPTZ NOT NULL", columns["recorded_at"])
}
