package web

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Envelope is the body of every portal response:
// {success, message, data?, error?}. Business failures still return HTTP 200;
// only Unauthorized and Forbidden use their HTTP status codes.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK writes a success envelope.
func OK(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a success envelope with 201.
func Created(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Fail writes a failure envelope for a classified error. Internal causes are
// logged server-side and replaced with a generic message.
func Fail(c echo.Context, err error) error {
	kind := KindOf(err)

	if kind == KindInternal {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).
			Str("path", c.Request().URL.Path).
			Msg("internal error")
	}

	status := http.StatusOK
	switch kind {
	case KindUnauthorized:
		status = http.StatusUnauthorized
	case KindForbidden:
		status = http.StatusForbidden
	}

	return c.JSON(status, Envelope{
		Success: false,
		Message: MessageOf(err),
		Error:   string(kind),
	})
}
