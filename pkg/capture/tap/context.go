package tap

import (
	"context"
	"strconv"

	"github.com/trainloop/capture/pkg/capture"
)

type callSiteKey struct{}

// WithCallSite returns a context that pins the call site recorded for
// requests made with it, bypassing the stack walk.
func WithCallSite(ctx context.Context, file string, line int) context.Context {
	return context.WithValue(ctx, callSiteKey{}, capture.Location{
		File:       file,
		LineNumber: strconv.Itoa(line),
	})
}

// CallSiteFromContext returns the call site pinned with WithCallSite.
func CallSiteFromContext(ctx context.Context) (capture.Location, bool) {
	if ctx == nil {
		return capture.Location{}, false
	}
	loc, ok := ctx.Value(callSiteKey{}).(capture.Location)
	return loc, ok
}
