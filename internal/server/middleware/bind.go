package middleware

import (
	"fmt"
	"net/http"
	"reflect"

	"github.com/cstockton/go-conv"
	"github.com/labstack/echo/v4"
)

// BindAndValidate bind request context and validate request struct.
// Bind includes request body, params, query, headers and cookies.
// Validate request struct, response bad request with error message if the request is invalid.
func BindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}

	if err := bindHeader(c.Request().Header, req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := bindCookie(c.Request(), req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}

// bindHeader decode http header to struct by tag `header:"<header_name>"`.
// Absent headers leave the field untouched.
// out must be a pointer to a struct
func bindHeader(header http.Header, dst interface{}) error {
	getValueFn := func(tagValue string) (interface{}, bool) {
		v := header.Get(tagValue)
		return v, v != ""
	}

	return bindStruct(dst, "header", getValueFn)
}

// bindCookie decode request cookies to struct by tag `cookie:"<cookie_name>"`
func bindCookie(req *http.Request, dst interface{}) error {
	getValueFn := func(tagValue string) (interface{}, bool) {
		cookie, err := req.Cookie(tagValue)
		if err != nil || cookie.Value == "" {
			return nil, false
		}
		return cookie.Value, true
	}

	return bindStruct(dst, "cookie", getValueFn)
}

// bindStruct decode to struct by custom tag `tagName:"tagValue"`
// dst must be a pointer to a struct
func bindStruct(dst interface{}, tagName string, getValueFn func(tagValue string) (interface{}, bool)) error {
	ptr := reflect.ValueOf(dst)
	if ptr.Kind() != reflect.Ptr {
		return fmt.Errorf("non-pointer passed to Unmarshal")
	}

	indirect := reflect.Indirect(ptr)
	structType := indirect.Type()
	elemZero := reflect.Zero(structType)

	numField := elemZero.NumField()
	for i := 0; i < numField; i++ {
		structField := structType.Field(i)
		tagValue := structField.Tag.Get(tagName)
		if tagValue == "-" || tagValue == "" {
			continue
		}

		value, ok := getValueFn(tagValue)
		if !ok {
			continue
		}
		field := indirect.Field(i)
		target := field
		if field.Kind() == reflect.Ptr {
			target = reflect.New(field.Type().Elem()).Elem()
		}
		if err := conv.Infer(target, value); err != nil {
			return fmt.Errorf("cannot parse %s.%s as %s from: %#v / %s",
				structType.Name(), structField.Name, field.Type(), value, err)
		}
		if field.Kind() == reflect.Ptr {
			field.Set(target.Addr())
		}
	}

	return nil
}
