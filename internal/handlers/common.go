// common.go
//
// Multi-department "no dues" clearance workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of nodues.
// nodues is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// nodues is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with nodues.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/localnerve/nodues/internal/store"
	"github.com/localnerve/nodues/internal/types"
	"github.com/localnerve/nodues/internal/utils"
	"github.com/localnerve/nodues/internal/workflow"
	"github.com/rs/zerolog"
)

var validate = newValidator()

// param copies a path parameter out of the request buffer fiber reuses.
func param(c *fiber.Ctx, key string) string {
	return fiberutils.CopyString(c.Params(key))
}

// query copies a query value out of the request buffer fiber reuses.
func query(c *fiber.Ctx, key string) string {
	return fiberutils.CopyString(c.Query(key))
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind parses the JSON body into req and validates its tags.
func bind(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return &workflow.ValidationError{Fields: map[string]string{"body": "malformed JSON: " + err.Error()}}
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldName(fe)] = tagMessage(fe)
		}
		return &workflow.ValidationError{Fields: fields}
	}
	return nil
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "is too long"
	case "min":
		return "is too short"
	}
	return "is invalid"
}

// parsePage reads page and page_size query parameters.
func parsePage(c *fiber.Ctx) store.Page {
	return store.Page{
		Number: c.QueryInt("page", 1),
		Size:   c.QueryInt("page_size", store.DefaultPageSize),
	}
}

// fail maps an engine or request error onto the error response format.
func fail(c *fiber.Ctx, err error, operation string) error {
	var custom *types.CustomError
	if errors.As(err, &custom) {
		return utils.ErrorResponse(c, custom.Message, custom.Code, custom.Type)
	}

	switch workflow.Code(err) {
	case "validation_error":
		var ve *workflow.ValidationError
		fields := map[string]string{}
		if errors.As(err, &ve) {
			fields = ve.Fields
		}
		return utils.ValidationErrorResponse(c, err.Error(), fields)
	case "not_found":
		return utils.NotFoundResponse(c, err.Error())
	case "duplicate_application":
		return utils.ErrorResponse(c, err.Error(), fiber.StatusConflict, "duplicate_application")
	case "conflict":
		return utils.TransitionErrorResponse(c, err.Error(), true)
	case "invalid_transition":
		return utils.TransitionErrorResponse(c, err.Error(), false)
	case "unsupported_entry_kind":
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnprocessableEntity, "unsupported_entry_kind")
	case "nothing_to_reapply":
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnprocessableEntity, "nothing_to_reapply")
	case "cancelled":
		return utils.ErrorResponse(c, "request cancelled", fiber.StatusRequestTimeout, "cancelled")
	}

	zerolog.Ctx(c.UserContext()).Error().Err(err).Str("operation", operation).Msg("request failed")
	return utils.ErrorResponse(c, "internal error", fiber.StatusInternalServerError, operation)
}

// ErrorHandler handles errors that escape the handlers, such as authorization
// failures and unmatched routes.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		errorType := "unknown"
		if fe.Code == fiber.StatusNotFound {
			errorType = "not_found"
		}
		return utils.ErrorResponse(c, fe.Message, fe.Code, errorType)
	}
	return fail(c, err, "unhandled")
}
