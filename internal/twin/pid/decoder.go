package pid

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/mqtt/topic"
)

var (
	// ErrUndecodable is returned when a body is neither a JSON object nor a
	// scalar that can be attributed to a field.
	ErrUndecodable = errors.New("undecodable telemetry body")

	// ErrNoMeasurements is returned for a JSON object without any known code.
	ErrNoMeasurements = errors.New("no known measurement in telemetry body")
)

// Result is the outcome of decoding one message.
type Result struct {
	Sample model.Sample

	// Unmapped lists the keys that are not in the measurement table.
	Unmapped []string

	// Rejected lists known keys whose value was null, boolean or nested.
	Rejected []string
}

// Decode turns a message body into a sample captured at now.
//
// A JSON object is decoded key by key against the measurement table. Any
// other body is taken as a single value for the field named by the last
// level of routingKey. Unmapped and Rejected are filled in even when
// ErrNoMeasurements is returned.
func Decode(routingKey string, body []byte, now time.Time) (*Result, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUndecodable)
	}
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid UTF-8", ErrUndecodable)
	}

	if body[0] == '{' {
		if obj, err := decodeObject(body); err == nil {
			return decodeFields(obj, now)
		}
	}

	return decodeScalar(routingKey, body, now)
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after object")
	}
	return obj, nil
}

func decodeFields(obj map[string]any, now time.Time) (*Result, error) {
	res := &Result{Sample: model.Sample{Fields: make(model.Fields, len(obj)), CapturedAt: now}}

	for key, raw := range obj {
		entry, ok := resolve(key)
		if !ok {
			res.Unmapped = append(res.Unmapped, key)
			continue
		}
		v, ok := coerce(entry, raw)
		if !ok {
			res.Rejected = append(res.Rejected, key)
			continue
		}
		res.Sample.Fields[entry.Field] = v
	}
	slices.Sort(res.Unmapped)
	slices.Sort(res.Rejected)

	if len(res.Sample.Fields) == 0 {
		return res, ErrNoMeasurements
	}
	return res, nil
}

func decodeScalar(routingKey string, body []byte, now time.Time) (*Result, error) {
	entry, ok := resolve(topic.Last(routingKey))
	if !ok {
		return nil, fmt.Errorf("%w: no measurement named by topic %q", ErrUndecodable, routingKey)
	}

	var raw any = string(body)
	if body[0] == '"' {
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			raw = s
		}
	}

	v, ok := coerce(entry, raw)
	if !ok {
		return nil, fmt.Errorf("%w: unusable value for %s", ErrUndecodable, entry.Field)
	}

	return &Result{
		Sample: model.Sample{Fields: model.Fields{entry.Field: v}, CapturedAt: now},
	}, nil
}

// coerce converts a decoded JSON value into an int64, float64 or string.
// Text measurements keep string values verbatim.
func coerce(entry Entry, raw any) (any, bool) {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	case float64:
		return v, true
	case int64:
		return v, true
	case string:
		if entry.Kind == KindText {
			return v, true
		}
		return coerceString(v), true
	default:
		// null, bool, arrays and objects
		return nil, false
	}
}

// coerceString parses numeric text: a decimal point selects a float, anything
// else is tried as an integer. Non-numeric text is returned unchanged.
func coerceString(s string) any {
	t := strings.TrimSpace(s)
	if strings.Contains(t, ".") {
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
		return s
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return i
	}
	return s
}
