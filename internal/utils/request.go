package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	appErrors "github.com/aryankhatri/food-ordering-platform/internal/errors"
	"github.com/aryankhatri/food-ordering-platform/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

// ParseAndValidate decodes the JSON body into dest and runs struct validation.
// On failure it writes the error response itself and returns false.
func ParseAndValidate(r *http.Request, w http.ResponseWriter, dest any, validate *validator.Validate) bool {

	if err := decodeJSONBody(r, dest); err != nil {
		response.Error(w, err)
		return false
	}

	if err := validate.Struct(dest); err != nil {

		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			response.ValidationError(w, validationErrs)
			return false
		}

		response.Error(w, appErrors.ValidationError("Invalid input data").WithError(err))

		return false
	}

	return true
}

// decodeJSONBody unmarshals the request body into dest. The body is read in
// full first so an empty payload can be told apart from a malformed one.
func decodeJSONBody(r *http.Request, dest any) error {

	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return appErrors.BadRequestError("Failed to read request body").WithError(err)
	}

	if len(body) == 0 {
		return appErrors.BadRequestError("Request body cannot be empty")
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return appErrors.BadRequestError("Invalid JSON in request body").WithError(err)
	}

	return nil
}
