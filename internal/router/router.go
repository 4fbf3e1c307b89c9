// Package router maps the HTTP API onto the service layer.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mapmyfamily/familyapi/internal/db/storage"
	"github.com/mapmyfamily/familyapi/internal/gzippedhttp"
	"github.com/mapmyfamily/familyapi/internal/logger"
	"github.com/mapmyfamily/familyapi/internal/models"
	"github.com/mapmyfamily/familyapi/internal/requestid"
	"github.com/mapmyfamily/familyapi/internal/service"
)

const (
	userErrorPrefix        = "Failed to get valid user"
	treeDiagramErrorPrefix = "Failed to get valid tree diagram"
	userNotFoundReason     = "User search returned null"
)

type documentService interface {
	CreateUser(ctx context.Context, usr models.User) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	CreateTreeDiagram(ctx context.Context, diagram models.TreeDiagram) (*models.TreeDiagram, error)
	GetTreeDiagram(ctx context.Context, id string) (*models.TreeDiagram, error)
	Ping(ctx context.Context) error
}

type metricsManager interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Router struct {
	svc               documentService
	corsAllowedOrigin string
}

type initOptions struct {
	corsAllowedOrigin string
	gzip              bool
	metrics           metricsManager
	metricsGuard      func(http.Handler) http.Handler
}

type InitOption func(*initOptions)

// WithCORSAllowedOrigin sets the single origin named in tree diagram CORS headers.
func WithCORSAllowedOrigin(origin string) InitOption {
	return func(options *initOptions) {
		options.corsAllowedOrigin = origin
	}
}

func WithGzip(enabled bool) InitOption {
	return func(options *initOptions) {
		options.gzip = enabled
	}
}

// WithMetrics instruments every route and serves /metrics behind guard.
// A nil guard leaves /metrics open.
func WithMetrics(metrics metricsManager, guard func(http.Handler) http.Handler) InitOption {
	return func(options *initOptions) {
		options.metrics = metrics
		options.metricsGuard = guard
	}
}

func New(svc documentService, optionsProto ...InitOption) *chi.Mux {
	options := &initOptions{
		corsAllowedOrigin: "http://localhost:3000",
		gzip:              true,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	theRouter := &Router{
		svc:               svc,
		corsAllowedOrigin: options.corsAllowedOrigin,
	}

	router := chi.NewRouter()
	router.Use(
		requestid.Middleware,
		logger.WithLoggingHTTPMiddleware,
		middleware.Recoverer,
	)
	if options.metrics != nil {
		router.Use(options.metrics.Middleware)
	}
	if options.gzip {
		router.Use(
			gzippedhttp.UngzipRequest,
			gzippedhttp.GzipResponse,
		)
	}

	router.Get(`/`, theRouter.GetHealth)
	router.Get(`/ping`, theRouter.GetPing)
	router.Post(`/user/`, theRouter.PostUser)
	router.Get(`/user/{user_id}`, theRouter.GetUser)
	router.Post(`/tree_diagram/`, theRouter.PostTreeDiagram)
	router.Options(`/tree_diagram/`, theRouter.OptionsTreeDiagram)
	router.Get(`/tree_diagram/{tree_diagram_id}`, theRouter.GetTreeDiagram)

	if options.metrics != nil {
		metricsHandler := options.metrics.Handler()
		if options.metricsGuard != nil {
			metricsHandler = options.metricsGuard(metricsHandler)
		}
		router.Method(http.MethodGet, `/metrics`, metricsHandler)
	}

	return router
}

// GetHealth is the liveness probe. It never touches the store.
func (router *Router) GetHealth(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, http.StatusOK, models.StatusResponse{Status: "ok"})
}

// GetPing reports whether the document store answers.
func (router *Router) GetPing(res http.ResponseWriter, req *http.Request) {
	if err := router.svc.Ping(req.Context()); err != nil {
		logger.FromContext(req.Context()).Warnw("document store ping failed", "error", err)
		writeJSON(res, http.StatusBadGateway, models.ErrorResponse{Detail: "Failed to reach document store"})
		return
	}

	writeJSON(res, http.StatusOK, models.StatusResponse{Status: "ok"})
}

func (router *Router) PostUser(res http.ResponseWriter, req *http.Request) {
	var payload models.CreateUserRequest
	if err := models.DecodeJSON(req.Body, &payload); err != nil {
		writeJSON(res, http.StatusUnprocessableEntity, models.ErrorResponse{Detail: "malformed JSON body: " + err.Error()})
		return
	}

	created, err := router.svc.CreateUser(req.Context(), payload.User())
	if err != nil {
		writeError(res, req, err, "Failed to create user")
		return
	}

	writeJSON(res, http.StatusCreated, created)
}

func (router *Router) GetUser(res http.ResponseWriter, req *http.Request) {
	usr, err := router.svc.GetUser(req.Context(), chi.URLParam(req, "user_id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(res, http.StatusNotFound, models.ErrorResponse{Detail: userErrorPrefix + ": " + userNotFoundReason})
		return
	}
	if err != nil {
		writeError(res, req, err, userErrorPrefix)
		return
	}

	writeJSON(res, http.StatusOK, models.UserResponse{User: usr})
}

func (router *Router) PostTreeDiagram(res http.ResponseWriter, req *http.Request) {
	router.setCORSHeaders(res)

	var payload models.CreateTreeDiagramRequest
	if err := models.DecodeJSON(req.Body, &payload); err != nil {
		writeJSON(res, http.StatusUnprocessableEntity, models.ErrorResponse{Detail: "malformed JSON body: " + err.Error()})
		return
	}

	created, err := router.svc.CreateTreeDiagram(req.Context(), payload.TreeDiagram())
	if err != nil {
		writeError(res, req, err, "Failed to create tree diagram")
		return
	}

	writeJSON(res, http.StatusCreated, created)
}

func (router *Router) GetTreeDiagram(res http.ResponseWriter, req *http.Request) {
	diagram, err := router.svc.GetTreeDiagram(req.Context(), chi.URLParam(req, "tree_diagram_id"))
	if err != nil {
		writeError(res, req, err, treeDiagramErrorPrefix)
		return
	}

	writeJSON(res, http.StatusOK, models.TreeDiagramResponse{Tree: diagram})
}

// OptionsTreeDiagram answers the browser preflight for diagram creation.
func (router *Router) OptionsTreeDiagram(res http.ResponseWriter, req *http.Request) {
	router.setCORSHeaders(res)
	res.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	res.Header().Set("Access-Control-Allow-Headers", "Content-Type, Origin, Accept")

	writeJSON(res, http.StatusOK, models.MessageResponse{Message: "Options response"})
}

func (router *Router) setCORSHeaders(res http.ResponseWriter) {
	res.Header().Set("Access-Control-Allow-Origin", router.corsAllowedOrigin)
	res.Header().Set("Access-Control-Allow-Credentials", "true")
}

func writeJSON(res http.ResponseWriter, statusCode int, body any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	if err := json.NewEncoder(res).Encode(body); err != nil {
		logger.Log.Errorw("failed to encode JSON response", "error", err)
	}
}

// writeError maps service and store errors onto status codes. Store and
// infrastructure failures get a fixed detail; the cause is only logged.
func writeError(res http.ResponseWriter, req *http.Request, err error, prefix string) {
	statusCode := http.StatusInternalServerError
	detail := prefix + ": internal error"

	switch {
	case errors.Is(err, service.ErrValidation):
		statusCode = http.StatusUnprocessableEntity
		detail = err.Error()
	case errors.Is(err, storage.ErrInvalidID):
		statusCode = http.StatusBadRequest
		detail = prefix + ": " + storage.ErrInvalidID.Error()
	case errors.Is(err, storage.ErrNotFound):
		statusCode = http.StatusNotFound
		detail = prefix + ": " + storage.ErrNotFound.Error()
	case errors.Is(err, storage.ErrUnavailable):
		statusCode = http.StatusBadGateway
		detail = prefix + ": " + storage.ErrUnavailable.Error()
	case errors.Is(err, context.DeadlineExceeded):
		statusCode = http.StatusGatewayTimeout
		detail = prefix + ": document store timed out"
	}

	if statusCode >= http.StatusInternalServerError {
		logger.FromContext(req.Context()).Errorw(
			"request failed",
			"uri", req.RequestURI,
			"error", err,
		)
	}

	writeJSON(res, statusCode, models.ErrorResponse{Detail: detail})
}
