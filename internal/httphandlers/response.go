package httphandlers

import (
	"encoding/json"
	"errors"
	"github.com/go-playground/validator/v10"
	"net/http"
	"nexdb/internal/manager"
	"nexdb/internal/misc"
	"nexdb/internal/types"
)

const (
	authorizationHeader = "X-Access-Token"
)

type (
	response struct {
		Error   bool        `json:"error"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}
)

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, err, nil)
}

func unauthorized(w http.ResponseWriter, err error) {
	writeError(w, http.StatusUnauthorized, err, nil)
}

// fail writes err with the status matching its kind
func fail(w http.ResponseWriter, err error) {
	writeError(w, statusOf(err), err, nil)
}

func statusOf(err error) int {
	var (
		notFound    *types.NotFoundError
		schedule    *types.ScheduleValidationError
		connection  *types.ConnectionFailedError
		transition  *types.InvalidTransitionError
		invalid     *types.InvalidRequestError
		notReady    *types.NotReadyError
		conflict    *types.ConflictError
		validation  validator.ValidationErrors
		invalidJSON *json.SyntaxError
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, manager.ErrAccessDenied):
		return http.StatusUnauthorized
	case errors.As(err, &notReady), errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &schedule),
		errors.As(err, &connection),
		errors.As(err, &transition),
		errors.As(err, &invalid),
		errors.As(err, &validation),
		errors.As(err, &invalidJSON),
		errors.Is(err, types.ErrUnsupportedEngine):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func ok(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	r := response{
		Error:   false,
		Message: message,
		Data:    data,
	}
	b, _ := json.Marshal(r)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, errorCode int, err error, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errorCode)
	errmsg := ""
	if err != nil {
		errmsg = err.Error()
	}

	r := response{
		Error:   true,
		Message: errmsg,
		Data:    data,
	}
	b, _ := json.Marshal(r)
	_, _ = w.Write(b)
}

// writeLine writes data as one line of a newline delimited JSON stream
func writeLine(w http.ResponseWriter, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := w.Write(b); err != nil {
		return err
	}
	_, _ = w.Write(misc.Seperator)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
