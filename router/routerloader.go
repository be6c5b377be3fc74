package router

import (
	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/remiges-tech/todomon/metrics"
)

// SetupRouter builds the engine with the middleware chain every route
// shares, outermost first: panic recovery, request logging, request
// instrumentation, CORS. untrackedRoutes are passed to Instrument.
func SetupRouter(m *metrics.AppMetrics, l *logharbour.Logger, cors CORSConfig, untrackedRoutes ...string) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LogRequest(NewLogHarbourAdapter(l)))
	r.Use(Instrument(m, l, untrackedRoutes...))
	r.Use(CORS(cors))

	return r
}
