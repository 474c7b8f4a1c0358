// Package registryapi serves a schema registry over HTTP.
//
//	GET    /healthz
//	GET    /events                     websocket stream of publish and delete events
//	POST   /token                      exchange basic credentials for a bearer token
//	GET    /schemas                    list of published files
//	GET    /schemas/{file}             .proto text
//	GET    /schemas/{file}/descriptor  encoded FileDescriptorSet
//	GET    /schemas/{file}/errors      validation report of an invalid schema
//	PUT    /schemas/{file}             publish a declaration file (YAML or JSON body)
//	DELETE /schemas/{file}
//
// PUT and DELETE require a bearer token when the server has an Authenticator.
// POST /token is only routed when the Authenticator has users.
package registryapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/karesti/protostream/internal/declfile"
	"github.com/karesti/protostream/internal/protogen"
	"github.com/karesti/protostream/internal/schemastore"
)

// MaxDeclarationSize bounds a PUT body.
const MaxDeclarationSize = 1 << 20

// Server exposes a schemastore.Store over HTTP.
type Server struct {
	store  schemastore.Store
	auth   *Authenticator
	logger *zap.Logger
	// defaults applied to published declaration files
	defaults protogen.Options
	events   *eventHub
}

// Option configures a Server.
type Option func(*Server)

// WithAuthenticator protects mutating routes.
func WithAuthenticator(a *Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaults sets generator options used for published declarations that
// do not set their own package or syntax.
func WithDefaults(opts protogen.Options) Option {
	return func(s *Server) { s.defaults = opts }
}

// New creates a server backed by store
func New(store schemastore.Store, opts ...Option) *Server {
	s := &Server{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.events = newEventHub(s.logger)
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/events", s.events.ServeHTTP)
	if s.auth != nil && s.auth.HasUsers() {
		r.Post("/token", s.token)
	}

	r.Route("/schemas", func(r chi.Router) {
		r.Get("/", s.list)
		r.Route("/{file}", func(r chi.Router) {
			r.Get("/", s.schema)
			r.Get("/descriptor", s.descriptor)
			r.Get("/errors", s.validationReport)

			r.Group(func(r chi.Router) {
				if s.auth != nil {
					r.Use(s.auth.Require)
				}
				r.Put("/", s.publish)
				r.Delete("/", s.delete)
			})
		})
	})

	return r
}

type fileSummary struct {
	File        string    `json:"file"`
	Revision    string    `json:"revision"`
	Valid       bool      `json:"valid"`
	PublishedAt time.Time `json:"published_at"`
}

func summarize(e *schemastore.Entry) fileSummary {
	return fileSummary{File: e.FileName, Revision: e.Revision, Valid: e.Valid(), PublishedAt: e.PublishedAt}
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List(r.Context())
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	out := make([]fileSummary, 0, len(names))
	for _, name := range names {
		e, err := s.store.Get(r.Context(), name)
		if errors.Is(err, schemastore.ErrNotFound) {
			// deleted between List and Get
			continue
		}
		if err != nil {
			s.storeError(w, r, err)
			return
		}
		out = append(out, summarize(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) entry(w http.ResponseWriter, r *http.Request) (*schemastore.Entry, bool) {
	e, err := s.store.Get(r.Context(), chi.URLParam(r, "file"))
	if err != nil {
		s.storeError(w, r, err)
		return nil, false
	}
	w.Header().Set("X-Schema-Revision", e.Revision)
	w.Header().Set("X-Schema-Valid", strconv.FormatBool(e.Valid()))
	return e, true
}

func (s *Server) schema(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, e.Schema)
}

func (s *Server) descriptor(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	if len(e.Descriptor) == 0 {
		writeError(w, http.StatusConflict, fmt.Sprintf("%s failed validation and has no descriptor", e.FileName))
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	_, _ = w.Write(e.Descriptor)
}

func (s *Server) validationReport(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	if e.Valid() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, e.Errors)
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	fileName := chi.URLParam(r, "file")
	if !strings.HasSuffix(fileName, ".proto") {
		writeError(w, http.StatusBadRequest, "file name must end in .proto")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxDeclarationSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > MaxDeclarationSize {
		writeError(w, http.StatusRequestEntityTooLarge, "declaration file too large")
		return
	}

	decl, err := declfile.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := s.defaults
	opts.FileName = fileName
	if decl.Package != "" {
		opts.Package = decl.Package
	}
	if decl.Syntax != "" {
		opts.Syntax = decl.Syntax
	}
	if len(decl.Imports) > 0 {
		opts.Imports = decl.Imports
	}
	if len(decl.Options) > 0 {
		opts.Options = decl.Options
	}

	g := protogen.New(opts, s.logger)
	if err := g.Add(decl.Types...); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	requireValid := r.URL.Query().Get("require_valid") == "true"
	e, err := schemastore.Publish(r.Context(), s.store, g, requireValid, s.logger)
	if err != nil {
		if errors.Is(err, schemastore.ErrInvalidSchema) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.storeError(w, r, err)
		return
	}

	s.logger.Info("schema published over http",
		zap.String("file", e.FileName),
		zap.String("subject", subjectFrom(r.Context())),
		zap.String("request_id", requestIDFrom(r.Context())),
	)
	s.events.broadcast(&Event{Type: EventPublished, File: e.FileName, Revision: e.Revision, Valid: e.Valid()})
	writeJSON(w, http.StatusCreated, summarize(e))
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	fileName := chi.URLParam(r, "file")
	if err := s.store.Delete(r.Context(), fileName); err != nil {
		s.storeError(w, r, err)
		return
	}
	s.events.broadcast(&Event{Type: EventDeleted, File: fileName})
	w.WriteHeader(http.StatusNoContent)
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	user, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="protostream"`)
		writeError(w, http.StatusUnauthorized, "basic credentials required")
		return
	}

	token, expiresAt, err := s.auth.Login(user, password)
	if err != nil {
		s.logger.Info("login rejected",
			zap.String("user", user),
			zap.String("request_id", requestIDFrom(r.Context())),
		)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, schemastore.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("schema store failure",
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestIDFrom(r.Context())),
	)
	writeError(w, http.StatusInternalServerError, "schema store unavailable")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	subjectKey   contextKey = "subject"
)

func withSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

func subjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID reads X-Request-ID or assigns a new UUID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestIDFrom(r.Context())),
		)
	})
}
