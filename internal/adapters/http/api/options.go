package api

import "time"

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithRequestTimeout bounds every request handled by the router.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithTopLimits sets the default and maximum size of the statistics top list.
func WithTopLimits(defaultTopN, maxTopLimit int) ServerOption {
	return func(s *Server) {
		if maxTopLimit > 0 {
			s.maxTopLimit = maxTopLimit
		}
		if defaultTopN >= 0 && defaultTopN <= s.maxTopLimit {
			s.defaultTopN = defaultTopN
		}
	}
}
