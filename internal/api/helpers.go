package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, ErrorResponse{
		Error: ResponseError{
			Type:    errType,
			Message: msg,
		},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return out, newInvalidRequest("request body is required")
		}
		return out, newInvalidRequest("invalid JSON body: %v", err)
	}
	return out, nil
}

func resolveK(k *int, def int) (int, error) {
	if k == nil {
		return def, nil
	}
	if *k <= 0 && *k != -1 {
		return 0, newInvalidRequest("k must be positive or -1, got %d", *k)
	}
	return *k, nil
}

func checkIDs(field string, ids []int32, limit int) error {
	for _, id := range ids {
		if id < 0 || int(id) >= limit {
			return newInvalidRequest("%s: id %d outside [0, %d)", field, id, limit)
		}
	}
	return nil
}

func newPredictionID() string {
	return "pred_" + uuid.NewString()
}

func newNeighborsID() string {
	return "nn_" + uuid.NewString()
}

func errorf(format string, args ...any) error {
	return fmt.Errorf("api: "+format, args...)
}
