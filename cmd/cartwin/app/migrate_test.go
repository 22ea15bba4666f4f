package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateCommandArgs(t *testing.T) {
	for _, args := range [][]string{{"migrate"}, {"migrate", "sideways"}, {"migrate", "up", "down"}} {
		cmd := NewApp().Command()
		cmd.SetArgs(args)
		assert.Error(t, cmd.Execute(), args)
	}
}

func TestMigrateCommandValidatesDSN(t *testing.T) {
	cmd := NewApp().Command()
	cmd.SetArgs([]string{"migrate", "up", "--postgres.dsn="})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--postgres.dsn")
}
