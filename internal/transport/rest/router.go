package rest

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"chatsurvey/internal/service"
	"chatsurvey/internal/transport/rest/handler"
	"chatsurvey/internal/transport/rest/middleware"
	"chatsurvey/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService    *service.AuthService
	SurveyService  *service.SurveyService
	RuntimeService *service.RuntimeService
	ReportService  *service.ReportService
	WSHub          *ws.Hub
	DeploymentID   string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	surveyHandler := handler.NewSurveyHandler(c.SurveyService)
	runtimeHandler := handler.NewRuntimeHandler(c.RuntimeService, c.SurveyService, c.DeploymentID, c.Logger)
	reportHandler := handler.NewReportHandler(c.ReportService)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.AllowedOrigins))

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/runtime/start", runtimeHandler.Start).Methods("POST", "OPTIONS")
	v1.HandleFunc("/runtime/preview", runtimeHandler.Preview).Methods("POST", "OPTIONS")
	v1.HandleFunc("/runtime/sessions/{sessionId}", runtimeHandler.State).Methods("GET", "OPTIONS")
	v1.HandleFunc("/runtime/sessions/{sessionId}/answer", runtimeHandler.Answer).Methods("POST", "OPTIONS")
	v1.HandleFunc("/runtime/sessions/{sessionId}/end", runtimeHandler.End).Methods("POST", "OPTIONS")

	// WebSocket routes (token in query param)
	if c.WSHub != nil {
		wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.AllowedOrigins)
		v1.HandleFunc("/ws/admin", wsHandler.AdminWS).Methods("GET")
	}

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Admin routes (require admin auth)
	adminRoutes := v1.NewRoute().Subrouter()
	adminRoutes.Use(authMW.RequireAdmin)

	adminRoutes.HandleFunc("/surveys", surveyHandler.Create).Methods("POST", "OPTIONS")
	adminRoutes.HandleFunc("/surveys", surveyHandler.List).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/surveys/{surveyId}", surveyHandler.Get).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/surveys/{surveyId}", surveyHandler.Update).Methods("PUT", "OPTIONS")
	adminRoutes.HandleFunc("/admin/responses", reportHandler.Responses).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/admin/clear-responses", reportHandler.ClearResponses).Methods("POST", "OPTIONS")
	adminRoutes.HandleFunc("/admin/report", reportHandler.Report).Methods("GET", "OPTIONS")

	return r
}

// corsMiddleware echoes the request origin when it is allowed. No configured
// origins allows any.
func corsMiddleware(allowed []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := allowOrigin(allowed, r.Header.Get("Origin")); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				if origin != "*" {
					w.Header().Add("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allowOrigin(allowed []string, origin string) string {
	if len(allowed) == 0 {
		return "*"
	}
	for _, o := range allowed {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}
