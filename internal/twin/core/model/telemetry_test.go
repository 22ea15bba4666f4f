package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFieldsMergeIsSticky(t *testing.T) {
	latest := Fields{"rpm": int64(800), "vehicle_speed": int64(0)}
	latest.Merge(Fields{"vehicle_speed": int64(27)})

	assert.Equal(t, Fields{"rpm": int64(800), "vehicle_speed": int64(27)}, latest)
}

func TestFieldsClone(t *testing.T) {
	var nilFields Fields
	assert.NotNil(t, nilFields.Clone())

	f := Fields{"rpm": int64(800)}
	c := f.Clone()
	c["rpm"] = int64(900)
	assert.Equal(t, int64(800), f["rpm"])
}

func TestSnapshotRecord(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := &Snapshot{VehicleID: "V1", DeviceID: "D1", Latest: Fields{"rpm": int64(800)}}

	rec := s.Record(now)
	assert.Equal(t, "V1", rec.VehicleID)
	assert.Equal(t, "D1", rec.DeviceID)
	assert.Equal(t, now, rec.RecordedAt)

	rec.Fields["rpm"] = int64(1)
	assert.Equal(t, int64(800), s.Latest["rpm"])
}

func TestDeviceStatusValid(t *testing.T) {
	assert.True(t, DeviceActive.Valid())
	assert.True(t, DeviceMaintenance.Valid())
	assert.False(t, DeviceStatus("retired").Valid())
}
