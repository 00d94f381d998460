package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JsonEncode is the loose object most handlers answer with.
type JsonEncode map[string]any

// J builds a JsonEncode from key, value pairs. Pairs whose key is not a
// non-empty string are skipped.
func J(pairs ...any) JsonEncode {
	out := JsonEncode{}
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok || key == "" {
			continue
		}
		out[key] = pairs[i+1]
	}
	return out
}

// Print_json writes one of:
//
//	Print_json(c, payload)             200 with payload as is
//	Print_json(c, payload, status)     payload with status
//	Print_json(c, "k", v, ...)         200 with J("k", v, ...)
//	Print_json(c, "k", v, ..., status) J(...) with status
func Print_json(c *gin.Context, args ...any) {
	if c == nil {
		return
	}
	status := http.StatusOK
	if n := len(args); n > 1 {
		_, pairs := args[0].(string)
		if code, ok := args[n-1].(int); ok && (pairs && n%2 == 1 || !pairs && n == 2) {
			status = code
			args = args[:n-1]
		}
	}
	switch len(args) {
	case 0:
		c.JSON(status, J())
	case 1:
		c.JSON(status, args[0])
	default:
		c.JSON(status, J(args...))
	}
}
