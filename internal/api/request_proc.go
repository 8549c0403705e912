package api

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/service"
)

func ProcessRequest[T any](e echo.Context, req *T, steps ...func(echo.Context, *T) error) error {
	for _, step := range steps {
		if err := step(e, req); err != nil {
			return err
		}
	}
	return nil
}

func bindStep[T any](e echo.Context, req *T) error {
	if err := e.Bind(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidInput, "invalid request body")
	}
	return nil
}

func validateStep[T any](e echo.Context, req *T) error {
	if err := e.Validate(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidInput, errors.Wrap(err, "request validation failed").Error())
	}
	return nil
}

// decodeRequest binds and validates req.
func decodeRequest[T any](e echo.Context, req *T) *service.Error {
	err := ProcessRequest(e, req, bindStep[T], validateStep[T])
	if err == nil {
		return nil
	}

	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return service.NewError(service.ErrorCodeInvalidInput, err.Error())
}
