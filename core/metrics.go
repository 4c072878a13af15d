package core

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the API's Prometheus collectors on a private registry so
// several routers can coexist in one process (tests).
type Metrics struct {
	registry      *prometheus.Registry
	loginAttempts *prometheus.CounterVec
	authDenied    *prometheus.CounterVec
	usersCreated  prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		authDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "auth_denied_total",
			Help:      "Requests rejected by the auth or role gate.",
		}, []string{"reason"}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "users_created_total",
			Help:      "Users created through POST /create_user/.",
		}),
	}
	m.registry.MustRegister(m.loginAttempts, m.authDenied, m.usersCreated)
	return m
}

func (m *Metrics) LoginSucceeded() { m.loginAttempts.WithLabelValues("success").Inc() }
func (m *Metrics) LoginFailed()    { m.loginAttempts.WithLabelValues("failure").Inc() }
func (m *Metrics) Unauthenticated() {
	m.authDenied.WithLabelValues("unauthenticated").Inc()
}
func (m *Metrics) Forbidden()   { m.authDenied.WithLabelValues("forbidden").Inc() }
func (m *Metrics) UserCreated() { m.usersCreated.Inc() }

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
