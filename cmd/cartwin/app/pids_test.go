package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/cartwin/internal/twin/pid"
)

func TestPIDsCommand(t *testing.T) {
	cmd := NewApp().Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"pids"})

	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.GreaterOrEqual(t, len(lines), len(pid.Table())+1)
	assert.Contains(t, lines[0], "FIELD")
	assert.Contains(t, out.String(), "0D-VehicleSpeed")
	assert.Contains(t, out.String(), "vehicle_speed")
}
