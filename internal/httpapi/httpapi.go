// Package httpapi wires the volume boundary's HTTP surface: LIST, PUT,
// PATCH, and the websocket subscribe endpoint, all scoped to a volume
// id path variable.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/styrainc/rtvolume/internal/actor"
	"github.com/styrainc/rtvolume/internal/volumemanager"
	"github.com/styrainc/rtvolume/pkg/api"
	"github.com/styrainc/rtvolume/pkg/rtvolume"
)

// Volumes is the subset of volumemanager.Manager the HTTP layer needs.
type Volumes interface {
	Get(ctx context.Context, id string) (*actor.Volume, error)
}

// Server holds the mux.Router and its dependencies.
type Server struct {
	router  *mux.Router
	volumes Volumes
	log     zerolog.Logger
}

// New builds a Server with every route registered.
func New(volumes *volumemanager.Manager, log zerolog.Logger) *Server {
	s := &Server{router: mux.NewRouter(), volumes: volumes, log: log}
	s.router.HandleFunc("/volumes/{volume}/files/{path:.+}", s.handleList).Methods(http.MethodGet)
	s.router.HandleFunc("/volumes/{volume}/files", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/volumes/{volume}/files", s.handlePut).Methods(http.MethodPut)
	s.router.HandleFunc("/volumes/{volume}/files", s.handlePatch).Methods(http.MethodPatch)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestIDMiddleware(s.router).ServeHTTP(w, r)
}

// handleRoot dispatches GET /volumes/{volume}/files to either the
// websocket subscribe endpoint (Upgrade header present) or a LIST of
// the root path.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Upgrade") != "" {
		s.handleSubscribe(w, r)
		return
	}
	s.list(w, r, "/")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]
	if len(path) == 0 || path[0] != '/' {
		path = "/" + path
	}
	s.list(w, r, path)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, path string) {
	volumeID := mux.Vars(r)["volume"]
	v, err := s.volumes.Get(r.Context(), volumeID)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}

	content := r.URL.Query().Get("content")
	resp, err := v.List(r.Context(), path, content)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	volumeID := mux.Vars(r)["volume"]
	v, err := s.volumes.Get(r.Context(), volumeID)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}

	var req api.PutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed PUT body")
		return
	}
	if err := v.Put(r.Context(), req); err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	volumeID := mux.Vars(r)["volume"]
	v, err := s.volumes.Get(r.Context(), volumeID)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}

	var req api.VolumePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed PATCH body")
		return
	}
	resp, err := v.Patch(r.Context(), req)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeInternalError logs err and returns a generic 500 to the client,
// never leaking internal error text. A recognized *rtvolume.Error is
// logged with its code; anything else is wrapped as CodeInternal first.
func (s *Server) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	var rerr *rtvolume.Error
	if !errors.As(err, &rerr) {
		rerr = rtvolume.Internal(err)
	}
	s.log.Error().Err(err).Str("code", rerr.Code).Str("requestId", requestIDFromContext(r.Context())).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
