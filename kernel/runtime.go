package kernel

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/maptrack/bank-api/models"
)

type spanCtxPair struct {
	span trace.Span
	ctx  context.Context
}

// RequestRuntime carries the per-request span stack, the authenticated
// user and the shared clients through middleware and handlers.
type RequestRuntime struct {
	AppRuntime *AppRuntime
	DB         *gorm.DB

	User *models.User

	RequestContext *gin.Context
	Span           trace.Span
	SpanContext    context.Context

	Error error

	pairs   []*spanCtxPair
	current int
}

func InitRequest(art *AppRuntime, rctx *gin.Context) *RequestRuntime {
	ctx := rctx.Request.Context()
	span, ctx := art.Diagnostic.BeginTracing(ctx, rctx.FullPath())

	rt := &RequestRuntime{
		AppRuntime: art,
		DB:         art.DatabaseClient,

		RequestContext: rctx,
		Span:           span,
		SpanContext:    ctx,
	}

	rt.pairs = []*spanCtxPair{{span: span, ctx: ctx}}
	return rt
}

// StepInto opens a child span and makes it current.
func (rt *RequestRuntime) StepInto(spanName string) *RequestRuntime {
	ctx, span := rt.AppRuntime.Diagnostic.Tracer.Start(rt.SpanContext, spanName)
	rt.pairs = append(rt.pairs, &spanCtxPair{span: span, ctx: ctx})
	rt.current = len(rt.pairs) - 1
	rt.Span = span
	rt.SpanContext = ctx
	return rt
}

// StepBack makes the parent span current without ending the child.
func (rt *RequestRuntime) StepBack() {
	if rt.current == 0 {
		return
	}
	rt.current = rt.current - 1

	pair := rt.pairs[rt.current]
	rt.Span = pair.span
	rt.SpanContext = pair.ctx
}

// EndBlock ends the current span and returns to its parent. Ending the
// root span is left to Finish.
func (rt *RequestRuntime) EndBlock() *RequestRuntime {
	if rt.Span.IsRecording() {
		rt.Span.End()
	}
	if rt.current == 0 {
		return rt
	}

	rt.pairs = rt.pairs[:rt.current]
	rt.current = rt.current - 1

	pair := rt.pairs[rt.current]
	rt.Span = pair.span
	rt.SpanContext = pair.ctx
	return rt
}

// Finish ends every span still open on the stack, innermost first. The
// tracer middleware calls it after the handler chain returns.
func (rt *RequestRuntime) Finish() {
	for i := len(rt.pairs) - 1; i >= 0; i-- {
		if rt.pairs[i].span.IsRecording() {
			rt.pairs[i].span.End()
		}
	}

	rt.pairs = rt.pairs[:1]
	rt.current = 0
}
