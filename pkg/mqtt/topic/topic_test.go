package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"wincan/device1", "wincan/device1", true},
		{"wincan/#", "wincan/device1", true},
		{"wincan/#", "wincan/device1/rpm", true},
		{"wincan/+", "wincan/device1", true},
		{"wincan/+", "wincan/device1/rpm", false},
		{"wincan/+/rpm", "wincan/device1/rpm", true},
		{"wincan/+/rpm", "wincan/device1/speed", false},
		{"wican/rpm", "wincan/rpm", false},
		{"wincan/device1/rpm", "wincan/device1", false},
	}
	for _, tt := range tests {
		t.Run(tt.filter+"|"+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.filter, tt.topic))
		})
	}
}

func TestStripShare(t *testing.T) {
	assert.Equal(t, "wincan/#", StripShare("$share/cartwin/wincan/#"))
	assert.Equal(t, "wincan/#", StripShare("wincan/#"))
}

func TestParentAndLast(t *testing.T) {
	p, ok := Parent("wincan/device1/rpm")
	assert.True(t, ok)
	assert.Equal(t, "wincan/device1", p)

	_, ok = Parent("rpm")
	assert.False(t, ok)

	assert.Equal(t, "rpm", Last("wican/rpm"))
	assert.Equal(t, "rpm", Last("rpm"))
}
