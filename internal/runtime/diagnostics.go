package runtime

import (
	"net/http"
	"strings"

	"github.com/drblury/pubsubflow/internal/runtime/jsoncodec"
)

func (s *Service) registerDiagnostics() {
	addr := s.Conf.DiagnosticsAddr()
	s.RegisterHTTPHandler(addr, "/api/handlers", http.HandlerFunc(s.handleGetHandlers))
	s.RegisterHTTPHandler(addr, "/api/topology", http.HandlerFunc(s.handleGetTopology))
}

func (s *Service) handleGetHandlers(w http.ResponseWriter, r *http.Request) {
	s.writeDiagnostics(w, r, s.Handlers())
}

func (s *Service) handleGetTopology(w http.ResponseWriter, r *http.Request) {
	s.writeDiagnostics(w, r, s.topology.Snapshot())
}

func (s *Service) writeDiagnostics(w http.ResponseWriter, r *http.Request, body any) {
	w.Header().Set("Content-Type", "application/json")

	if origin := s.allowedCORSOrigin(r.Header.Get("Origin")); origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := jsoncodec.Encode(w, body); err != nil {
		s.Logger.Error("Failed to encode diagnostics", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// allowedCORSOrigin returns the Access-Control-Allow-Origin value for the
// request origin, empty when the origin is not allowed.
func (s *Service) allowedCORSOrigin(requestOrigin string) string {
	if s.Conf == nil || requestOrigin == "" {
		return ""
	}
	for _, allowed := range s.Conf.DiagnosticsCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
