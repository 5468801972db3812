package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health answers GET /healthz for load balancers and monitoring.  It
// only confirms that the HTTP process is serving; database and broker
// health are observed through their own reconnect logging.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
