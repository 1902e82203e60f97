package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sarir_auth_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"result"}) // success, invalid_credentials, throttled, error

	refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sarir_auth_refreshes_total",
		Help: "Refresh-token rotations by outcome.",
	}, []string{"result"}) // success, rejected, error
)
