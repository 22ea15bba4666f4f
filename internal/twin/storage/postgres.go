package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/autopeer-io/cartwin/internal/twin/core"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/internal/twin/pid"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Postgres inserts one row per record into a flat table with a column per
// measurement field. Fields missing from a record are written as NULL.
type Postgres struct {
	db      *sql.DB
	columns []pid.Entry
	query   string
}

var _ core.TelemetryWriter = (*Postgres)(nil)

func NewPostgres(db *sql.DB, table string) (*Postgres, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid telemetry table name %q", table)
	}

	names := []string{"vehicle_id", "device_id", "recorded_at"}
	columns := make([]pid.Entry, 0, len(pid.Fields()))
	for _, f := range pid.Fields() {
		e, _ := pid.LookupField(f)
		columns = append(columns, e)
		names = append(names, f)
	}
	placeholders := make([]string, len(names))
	for i := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	return &Postgres{
		db:      db,
		columns: columns,
		query: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(names, ", "), strings.Join(placeholders, ", ")),
	}, nil
}

func (p *Postgres) InsertTelemetry(ctx context.Context, rec *model.TelemetryRecord) error {
	args := make([]any, 0, len(p.columns)+3)
	args = append(args, rec.VehicleID, nullable(rec.DeviceID), rec.RecordedAt.UTC())
	for _, c := range p.columns {
		args = append(args, columnValue(c.Kind, rec.Fields[c.Field]))
	}

	if _, err := p.db.ExecContext(ctx, p.query, args...); err != nil {
		return fmt.Errorf("insert telemetry for vehicle %s: %w", rec.VehicleID, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// columnValue fits a decoded value to the column type of its measurement.
// Values a numeric column cannot hold are written as NULL.
func columnValue(kind pid.Kind, v any) any {
	if v == nil {
		return nil
	}
	if kind == pid.KindText {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}

	switch n := v.(type) {
	case int64:
		return n
	case float64:
		if kind == pid.KindInteger {
			// float64(math.MaxInt64) rounds up to 2^63, which no int64 holds.
			if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
				return nil
			}
			return int64(n)
		}
		return n
	default:
		return nil
	}
}
