package kernel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/maptrack/bank-api/banks"
)

// MakeError records err on the current span, ends the span and steps back
// to its parent, so the caller can return the error straight up.
func (rt *RequestRuntime) MakeError(err error) error {
	s := rt.Span
	s.RecordError(err)
	s.SetStatus(codes.Error, err.Error())
	rt.Error = err
	rt.EndBlock()

	return err
}

func (rt *RequestRuntime) E(code int, err error) *RequestRuntime {
	rt.RequestContext.AbortWithStatusJSON(code, &gin.H{
		"error":   rt.MakeError(err).Error(),
		"traceId": rt.Span.SpanContext().TraceID().String(),
	})
	return rt
}

func (rt *RequestRuntime) Ef(code int, format string, args ...interface{}) *RequestRuntime {
	return rt.E(code, fmt.Errorf(format, args...))
}

// Fail maps the bank error taxonomy onto HTTP statuses: unknown bank is a
// caller error, transport faults are service-unavailable, a provider
// failure is relayed with its original status and body.
func (rt *RequestRuntime) Fail(err error) {
	var (
		invalid  *banks.InvalidBankError
		network  *banks.NetworkError
		upstream *banks.UpstreamError
		format   *banks.FormatError
	)

	switch {
	case errors.As(err, &invalid):
		rt.E(http.StatusBadRequest, err)
	case errors.As(err, &network):
		rt.E(http.StatusServiceUnavailable, err)
	case errors.As(err, &upstream):
		rt.RequestContext.AbortWithStatusJSON(upstream.Status, &gin.H{
			"error":   rt.MakeError(err).Error(),
			"detail":  json.RawMessage(upstream.Body),
			"traceId": rt.Span.SpanContext().TraceID().String(),
		})
	case errors.As(err, &format):
		rt.E(http.StatusBadGateway, err)
	default:
		rt.E(http.StatusInternalServerError, err)
	}
}
