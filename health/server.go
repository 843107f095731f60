package health

import (
	"net/http"
)

// Handler is the subset of a router needed to mount the probes.
type Handler interface {
	Handle(pattern string, h http.Handler)
}

// Check returns a non-nil error when the service should not receive traffic.
type Check func() error

func Register(mux Handler, checks ...Check) {
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	mux.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}))
}
