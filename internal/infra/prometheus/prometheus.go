package prometheus

import (
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sifan077/DealLink/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 10 * time.Second
	defaultPort       = 9090
	defaultPath       = "/metrics"
)

// NewServer builds the scrape endpoint for the default registry. It listens on
// its own port so metrics stay off the public router.
func NewServer(cfg config.PrometheusConfig) *http.Server {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	path := cfg.Path
	if path == "" {
		path = defaultPath
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.InstrumentMetricHandler(
		prom.DefaultRegisterer,
		promhttp.HandlerFor(prom.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Timeout:           writeTimeout,
		}),
	))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
}
