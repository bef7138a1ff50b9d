package trace

import "context"

// link is what a context carries: the tracer and the span new work nests
// under.
type link struct {
	tracer Tracer
	span   uint64
}

type linkKey struct{}

func linkOf(ctx context.Context) link {
	if ctx != nil {
		if l, ok := ctx.Value(linkKey{}).(link); ok {
			return l
		}
	}
	return link{tracer: Nop}
}

// FromContext returns the tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer { return linkOf(ctx).tracer }

// WithTracer attaches t to ctx. The current span, if any, is kept.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	l := linkOf(ctx)
	l.tracer = t
	return context.WithValue(ctx, linkKey{}, l)
}

// SpanID is the span started most recently on ctx, or 0.
func SpanID(ctx context.Context) uint64 { return linkOf(ctx).span }

func withSpan(ctx context.Context, t Tracer, id uint64) context.Context {
	return context.WithValue(ctx, linkKey{}, link{tracer: t, span: id})
}
