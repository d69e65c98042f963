package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// WrapHandler binds and validates Req, calls f and writes its result in the
// standard Response envelope. A *Response result is written as is.
func WrapHandler[Req any, Res any](f func(echo.Context, Req) (Res, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req Req
		if err := BindAndValidate(c, &req); err != nil {
			return err
		}

		data, err := f(c, req)
		if err != nil {
			return err
		}
		if c.Response().Committed {
			return nil
		}

		if v, ok := any(data).(*Response); ok {
			return c.JSON(v.Status, v)
		}
		return c.JSON(http.StatusOK, &Response{
			Status:  http.StatusOK,
			Success: true,
			Data:    data,
		})
	}
}

// WrapNoContent is WrapHandler for handlers without a response body.
func WrapNoContent[Req any](f func(echo.Context, Req) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req Req
		if err := BindAndValidate(c, &req); err != nil {
			return err
		}
		if err := f(c, req); err != nil {
			return err
		}
		if c.Response().Committed {
			return nil
		}
		return c.NoContent(http.StatusNoContent)
	}
}
