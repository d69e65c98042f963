package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// LogRequestConfig selects what LogRequest records. Nil predicates take the
// defaults noted on each field.
type LogRequestConfig struct {
	Logger Logger
	// Skip drops the request from the log. Default: never.
	Skip func(c echo.Context) bool
	// RequestBody logs JSON request bodies. Default: always.
	RequestBody func(c echo.Context) bool
	// ResponseBody logs JSON response bodies. Default: always.
	ResponseBody func(c echo.Context) bool
}

type bodyDumpWriter struct {
	io.Writer
	http.ResponseWriter
}

// LogRequest writes one line per request at a level chosen by status:
// 5xx as error, 4xx as warning and the rest as info. HTML bodies are never
// logged.
func LogRequest(config LogRequestConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		panic("Logger is required to use LogRequest")
	}
	always := func(echo.Context) bool { return true }
	if config.Skip == nil {
		config.Skip = func(echo.Context) bool { return false }
	}
	if config.RequestBody == nil {
		config.RequestBody = always
	}
	if config.ResponseBody == nil {
		config.ResponseBody = always
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skip(c) {
				return next(c)
			}

			start := time.Now()
			req := c.Request()
			res := c.Response()

			var reqBody json.RawMessage
			logReqBody := config.RequestBody(c) && isJSON(req.Header.Get(echo.HeaderContentType))
			if logReqBody {
				reqBody, _ = io.ReadAll(req.Body)
				req.Body = io.NopCloser(bytes.NewReader(reqBody))
			}

			var resBuf bytes.Buffer
			logResBody := config.ResponseBody(c)
			if logResBody {
				res.Writer = &bodyDumpWriter{Writer: io.MultiWriter(res.Writer, &resBuf), ResponseWriter: res.Writer}
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			args := []interface{}{
				"status", res.Status,
				"method", req.Method,
				"uri", req.RequestURI,
				"route", c.Path(),
				"latency_ms", time.Since(start).Milliseconds(),
				"real_ip", c.RealIP(),
				"user_agent", req.UserAgent(),
				"request_id", GetRequestID(c),
			}
			if sid, ok := c.Get(SessionIDKey).(string); ok && sid != "" {
				args = append(args, "session_id", sid)
			}
			if width := req.Header.Get(HeaderViewportWidth); width != "" {
				args = append(args, "viewport_width", width)
			}
			if query := c.QueryParams(); len(query) > 0 {
				args = append(args, "query", query)
			}
			if len(req.Form) > 0 {
				args = append(args, "form", req.Form)
			}
			if names := c.ParamNames(); len(names) > 0 {
				params := make(map[string]string, len(names))
				for _, name := range names {
					params[name] = c.Param(name)
				}
				args = append(args, "params", params)
			}
			if logReqBody && len(reqBody) > 0 {
				args = append(args, "request_body", reqBody)
			}
			if logResBody && isJSON(res.Header().Get(echo.HeaderContentType)) && resBuf.Len() > 0 {
				args = append(args, "response_body", json.RawMessage(resBuf.Bytes()))
			}

			switch {
			case res.Status >= http.StatusInternalServerError:
				if err != nil {
					args = append(args, "error", err.Error())
				}
				config.Logger.Errorw("", args...)
			case res.Status >= http.StatusBadRequest:
				config.Logger.Warnw("", args...)
			default:
				config.Logger.Infow("", args...)
			}

			return err
		}
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, echo.MIMEApplicationJSON)
}

func (w *bodyDumpWriter) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyDumpWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func (w *bodyDumpWriter) Flush() {
	w.ResponseWriter.(http.Flusher).Flush()
}

func (w *bodyDumpWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.ResponseWriter.(http.Hijacker).Hijack()
}
