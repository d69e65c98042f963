package util

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
)

type RestyOptions struct {
	// Retries is the number of extra attempts after the first. Negative
	// values are treated as zero.
	Retries   int
	Timeout   time.Duration
	UserAgent string
	// Logger receives resty's retry and error messages. Nil discards them.
	Logger resty.Logger
}

type discardLogger struct{}

func (discardLogger) Errorf(string, ...interface{}) {}
func (discardLogger) Warnf(string, ...interface{})  {}
func (discardLogger) Debugf(string, ...interface{}) {}

// NewRestyClient returns a client using goccy/go-json that retries on
// transport errors and on the status codes go-retryablehttp treats as
// retryable.
func NewRestyClient(opts RestyOptions) *resty.Client {
	var log resty.Logger = discardLogger{}
	if opts.Logger != nil {
		log = opts.Logger
	}
	c := resty.New().
		SetRetryCount(max(opts.Retries, 0)).
		SetTimeout(opts.Timeout).
		SetLogger(log).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			retry, _ := retryablehttp.DefaultRetryPolicy(r.Request.Context(), r.RawResponse, err)
			return retry
		})
	if opts.UserAgent != "" {
		c.SetHeader("User-Agent", opts.UserAgent)
	}
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal
	return c
}
