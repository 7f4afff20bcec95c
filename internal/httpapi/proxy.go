package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// proxyPrefix is stripped before forwarding to the upstream API.
const proxyPrefix = "/proxy"

// NewUpstreamProxy forwards /proxy/* requests to target with the prefix removed.
func NewUpstreamProxy(target string, logger *slog.Logger) (http.Handler, error) {
	upstream, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("upstream URL %q must be absolute", target)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, proxyPrefix)
			pr.Out.URL.RawPath = strings.TrimPrefix(pr.In.URL.RawPath, proxyPrefix)
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "upstream request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusBadGateway, errorBody{Message: "Upstream request failed"})
		},
	}, nil
}
