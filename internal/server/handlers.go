package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/depwalk/pkg/errors"
	"github.com/matzehuels/depwalk/pkg/pipeline"
	"github.com/matzehuels/depwalk/pkg/render/nodelink"
	"github.com/matzehuels/depwalk/pkg/store"
)

const maxRequestBody = 1 << 20 // 1 MiB

const listLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&opts); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		s.writeError(w, err)
		return
	}
	// DOT is regenerated on demand from the stored graph.
	opts.Formats = []string{pipeline.FormatJSON}

	result, err := s.exec.Execute(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	snap := store.NewSnapshot(
		opts.Interpreter,
		result.Environment.Fingerprint(),
		opts.Packages,
		result.GraphHash,
		result.Graph,
	)
	if err := s.store.Put(r.Context(), snap); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "store snapshot"))
		return
	}

	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.store.List(r.Context(), listLimit)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "list snapshots"))
		return
	}
	if snaps == nil {
		snaps = []*store.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := s.lookup(w, r)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetDOT(w http.ResponseWriter, r *http.Request) {
	snap, err := s.lookup(w, r)
	if err != nil {
		return
	}

	g, err := snap.Graph.ToGraph()
	if err != nil {
		s.writeError(w, err)
		return
	}
	dot := nodelink.ToDOT(g, nodelink.Options{CycleNodes: snap.Graph.CycleNodes()})

	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = w.Write([]byte(dot))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "delete snapshot"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookup fetches the snapshot for the request's id parameter, writing
// the error response itself on failure.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*store.Snapshot, error) {
	id := chi.URLParam(r, "id")
	snap, err := s.store.Get(r.Context(), id)
	if err == store.ErrNotFound {
		err = errors.New(errors.ErrCodeGraphNotFound, "no snapshot with id %q", id)
		s.writeError(w, err)
		return nil, err
	}
	if err != nil {
		err = errors.Wrap(errors.ErrCodeInternal, err, "fetch snapshot")
		s.writeError(w, err)
		return nil, err
	}
	return snap, nil
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "err", err)
	}
	writeJSON(w, status, errorResponse{
		Code:  string(code),
		Error: errors.UserMessage(err),
	})
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPackage,
		errors.ErrCodeInvalidInterpreter, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodePackageNotFound, errors.ErrCodeGraphNotFound, errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeMalformedRequirement, errors.ErrCodeProbeFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
