package middleware

import (
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// DefaultGlobalRate is the whole-process requests-per-minute ceiling.
const DefaultGlobalRate = 10000

// GlobalBackstop applies a single process-wide request ceiling in front of
// the per-policy limiters. It is a capacity guard for the instance, not a
// fairness mechanism; every request shares the one bucket.
func GlobalBackstop(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultGlobalRate
	}

	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  int64(requestsPerMinute),
	}
	instance := limiter.New(memory.NewStore(), rate)
	keyGetter := func(r *http.Request) string {
		return "global"
	}
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(keyGetter))
	return mw.Handler
}
