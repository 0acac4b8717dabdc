package sqlstore

import (
	"fmt"
	"math"
	"math/big"
	"time"
)

type float64Valuer interface {
	Float64() float64
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		normalized[i] = normalizeValue(value)
	}
	return normalized
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case string, int64, float64, bool, time.Time:
		return typed
	case []byte:
		return string(typed)
	case int:
		return int64(typed)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	case uint:
		return unsignedValue(uint64(typed))
	case uint64:
		return unsignedValue(typed)
	case float32:
		return float64(typed)
	case *big.Int:
		if typed.IsInt64() {
			return typed.Int64()
		}
		return typed.String()
	case float64Valuer:
		// duckdb DECIMAL
		return typed.Float64()
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

func unsignedValue(value uint64) any {
	if value > math.MaxInt64 {
		return float64(value)
	}
	return int64(value)
}
