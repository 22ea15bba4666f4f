package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/autopeer-io/cartwin/internal/twin/core"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
)

// Postgres reads devices and assignments from the devices and
// vehicle_device_assignment tables.
type Postgres struct {
	db *sql.DB
}

var _ core.DeviceDirectory = (*Postgres)(nil)

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) LookupDeviceByRoutingKey(ctx context.Context, key string) (*model.Device, error) {
	const q = `
SELECT id::text, device_code, mqtt_topic, status
FROM devices
WHERE mqtt_topic = $1
LIMIT 1
`
	var d model.Device
	var status string
	err := p.db.QueryRowContext(ctx, q, key).Scan(&d.ID, &d.Code, &d.RoutingKey, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres directory: lookup device: %w", err)
	}
	d.Status = model.DeviceStatus(status)
	return &d, nil
}

// ActiveAssignment returns the most recent active assignment of the device.
func (p *Postgres) ActiveAssignment(ctx context.Context, deviceID string) (*model.Assignment, error) {
	const q = `
SELECT device_id::text, vehicle_id::text, is_active, assigned_at, unassigned_at, COALESCE(notes, '')
FROM vehicle_device_assignment
WHERE device_id::text = $1 AND is_active
ORDER BY assigned_at DESC
LIMIT 1
`
	var a model.Assignment
	var unassigned sql.NullTime
	err := p.db.QueryRowContext(ctx, q, deviceID).Scan(
		&a.DeviceID, &a.VehicleID, &a.Active, &a.AssignedAt, &unassigned, &a.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres directory: lookup assignment: %w", err)
	}
	if unassigned.Valid {
		a.UnassignedAt = &unassigned.Time
	}
	return &a, nil
}
