package board

import (
	"fmt"
	"strconv"
)

// toRedisString mimics how Redis stringifies hash values written via HSET.
func toRedisString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprintf("%v", x)
	}
}
