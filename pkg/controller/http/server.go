package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/meetscribe/pkg/service/auth"
	"github.com/secmon-lab/meetscribe/pkg/service/audio"
	"github.com/secmon-lab/meetscribe/pkg/service/notification"
	"github.com/secmon-lab/meetscribe/pkg/usecase"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

// multipart overhead allowed on top of the audio size limit
const multipartOverhead = 1 << 20

type Server struct {
	router        *chi.Mux
	uc            *usecase.UseCases
	verifier      auth.Verifier
	hub           *notification.Hub
	verbose       bool
	maxUploadSize int64
}

type Options func(*Server)

// WithHub enables the WebSocket endpoints
func WithHub(hub *notification.Hub) Options {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithVerboseErrors exposes messages of internal errors in responses
func WithVerboseErrors(verbose bool) Options {
	return func(s *Server) {
		s.verbose = verbose
	}
}

func WithMaxUploadSize(size int64) Options {
	return func(s *Server) {
		s.maxUploadSize = size
	}
}

func New(uc *usecase.UseCases, verifier auth.Verifier, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:        r,
		uc:            uc,
		verifier:      verifier,
		maxUploadSize: audio.DefaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware(bearerToken))

		r.Get("/me", s.handleMe)

		r.Route("/meetings", func(r chi.Router) {
			r.Get("/", s.handleListMeetings)
			r.Post("/", s.handleUploadMeeting)

			r.Route("/{meetingID}", func(r chi.Router) {
				r.Get("/", s.handleGetMeeting)
				r.Patch("/", s.handleUpdateMeeting)
				r.Delete("/", s.handleDeleteMeeting)
				r.Get("/status", s.handleMeetingStatus)
				r.Post("/reprocess", s.handleReprocessMeeting)

				r.Get("/transcript", s.handleGetTranscript)
				r.Patch("/transcript/segments/{segmentID}", s.handleUpdateSegment)
				r.Post("/transcript/speakers", s.handleRenameSpeaker)

				r.Get("/tasks", s.handleListMeetingTasks)
				r.Post("/tasks", s.handleCreateTask)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/bulk", s.handleBulkTasks)
			r.Post("/sync", s.handleSyncTasks)

			r.Route("/{taskID}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Patch("/", s.handleUpdateTask)
				r.Delete("/", s.handleDeleteTask)
				r.Post("/sync", s.handleSyncTask)
			})
		})

		r.Route("/integrations", func(r chi.Router) {
			r.Get("/", s.handleListIntegrations)
			r.Post("/", s.handleCreateIntegration)

			r.Route("/{integrationID}", func(r chi.Router) {
				r.Get("/", s.handleGetIntegration)
				r.Patch("/", s.handleUpdateIntegration)
				r.Delete("/", s.handleDeleteIntegration)
				r.Post("/test", s.handleTestIntegration)
				r.Get("/workspaces", s.handleListWorkspaces)
				r.Get("/workspaces/{workspaceID}/projects", s.handleListProjects)
			})
		})
	})

	// WebSocket clients pass the token as a query parameter
	if s.hub != nil {
		r.Route("/ws", func(r chi.Router) {
			r.Use(s.authMiddleware(queryToken))
			r.Get("/meetings/{meetingID}", s.handleMeetingSocket)
			r.Get("/user", s.handleUserSocket)
		})
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "healthy"})
}

// requestLogger attaches a logger carrying the request ID to the request context
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.From(r.Context()).With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(logging.With(r.Context(), logger)))
	})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.From(r.Context()).Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
