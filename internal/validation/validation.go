package validation

import (
	"encoding/json"
	"io"
	"net/http"

	"repodeck/internal/errors"
	"repodeck/internal/logging"
)

type Validator interface {
	Validate() error
}

// Field pairs a JSON field name with its value for Required
type Field struct {
	Name  string
	Value string
}

// Decode reads a JSON body into v and runs v.Validate when implemented.
// An empty body is treated as an empty object. When v is a logging.Fielder
// its fields are annotated onto the request context.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return errors.ValidationError("invalid request body", err.Error())
	}
	if f, ok := v.(logging.Fielder); ok {
		logging.Annotate(r.Context(), f.LogFields()...)
	}
	if val, ok := v.(Validator); ok {
		return val.Validate()
	}
	return nil
}

// Required fails with a validation error naming every empty field
func Required(fields ...Field) error {
	var missing []string
	for _, f := range fields {
		if f.Value == "" {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.ValidationError("missing required fields", map[string][]string{"missing": missing})
}
