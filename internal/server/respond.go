package server

import (
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	perr "github.com/ivlev/scriptcam/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBody caps request bodies; scripts are plain text.
const maxBody = 1 << 20

// Envelope is the response body of every endpoint.
type Envelope struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	Data       any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{
		StatusCode: status,
		Status:     http.StatusText(status),
		Data:       data,
	})
}

func respondError(w http.ResponseWriter, err error) {
	status := perr.HTTPStatus(err)
	wr := perr.WireFrom(err)
	writeJSON(w, status, Envelope{
		StatusCode: status,
		Status:     http.StatusText(status),
		Code:       wr.Code,
		Error:      wr.Message,
	})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "-" || tag == "" {
			return fld.Name
		}
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		return tag
	})
	return v
}

// bind decodes a JSON body into dst and validates it. Failures are
// invalid_config errors.
func bind(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeInvalidConfig, "read body")
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return perr.Wrap(err, perr.ErrorCodeInvalidConfig, "decode body")
		}
	}
	if err := validate.Struct(dst); err != nil {
		return perr.Wrap(err, perr.ErrorCodeInvalidConfig, "validate body")
	}
	return nil
}
