// Package handler implements the HTTP endpoints of the reservation
// service.  Handlers bind and validate requests, call into the
// repository layer with a bounded context and translate the sentinel
// error taxonomy into JSON responses.
package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// dbTimeout bounds the duration of database work done on behalf of a
// single request.
const dbTimeout = 5 * time.Second

// getUserID extracts the acting user's id from the echo context.  The
// JWT middleware stores it as uint64; other numeric shapes are
// tolerated for robustness.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses the :id path parameter as a positive uint64.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// reqContext derives a context with the standard database timeout
// from the incoming request.
func reqContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}
