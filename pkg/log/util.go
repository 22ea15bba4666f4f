package log

import (
	"fmt"

	"go.uber.org/zap"
)

// toFields turns keysAndValues into zap fields. zap.Field and error values
// may stand alone; everything else is read as key, value.
func toFields(args ...any) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case zap.Field:
			fields = append(fields, v)
			continue
		case error:
			fields = append(fields, zap.Error(v))
			continue
		}

		if i == len(args)-1 {
			fields = append(fields, zap.Any(fmt.Sprintf("arg#%d", i), args[i]))
			break
		}

		key, val := args[i], args[i+1]
		i++
		if s, ok := key.(string); ok {
			fields = append(fields, field(s, val))
			continue
		}
		fields = append(fields, zap.Any(fmt.Sprintf("invalid_key_%d", (i+1)/2), map[string]any{
			"key":   key,
			"value": val,
		}))
	}

	return fields
}

// field picks a typed constructor for the values cartwin logs most and falls
// back to zap.Any for the rest.
func field(key string, val any) zap.Field {
	switch v := val.(type) {
	case string:
		return zap.String(key, v)
	case bool:
		return zap.Bool(key, v)
	case int:
		return zap.Int(key, v)
	case int64:
		return zap.Int64(key, v)
	case float64:
		return zap.Float64(key, v)
	case []string:
		return zap.Strings(key, v)
	case []byte:
		return zap.ByteString(key, v)
	case error:
		return zap.NamedError(key, v)
	default:
		return zap.Any(key, v)
	}
}
