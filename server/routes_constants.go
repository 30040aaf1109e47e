package server

// Route path constants
// The callback path is configurable and lives in config.OAuth.CallbackPath.
const (
	RouteIndex  = "/"
	RouteLogin  = "/login"
	RouteLogout = "/logout"
	RouteError  = "/error"

	// Actuator routes
	RouteActuator           = "/actuator"
	RouteActuatorHealth     = "/actuator/health"
	RouteActuatorInfo       = "/actuator/info"
	RouteActuatorPrometheus = "/actuator/prometheus"
)

// returnToParam names the local path /login sends the browser to afterwards.
const returnToParam = "return_to"

const contentTypeJSON = "application/json; charset=utf-8"
