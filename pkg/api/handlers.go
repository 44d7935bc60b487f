package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	hr "github.com/julienschmidt/httprouter"
	"igloader/pkg/logger"
	"igloader/pkg/retrieval"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ hr.Params) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleDownloadPost(w http.ResponseWriter, r *http.Request, _ hr.Params) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Status: "error",
				Detail: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Status: "error", Detail: "failed to read request body"})
		return
	}

	req, err := decodeDownloadPost(body)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Status: "error", Detail: err.Error()})
		return
	}

	sub := ""
	if req.TargetDirectory != nil {
		sub = *req.TargetDirectory
	}
	target, err := retrieval.ResolveTarget(s.baseDir, sub)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Status: "error", Detail: err.Error(), PostID: req.PostID})
		return
	}

	// The retrieval runs to completion even when the client goes away,
	// and there is no deadline on it beyond the upstream client's
	// per-request timeout.
	ctx := context.WithoutCancel(r.Context())
	outcome := s.retriever.Retrieve(ctx, req.PostID, target)

	s.metrics.ObserveRetrieval(outcome.Kind.String())
	logger.LogRetrieval(
		s.logger.WithField("request_id", RequestIDFrom(r.Context())),
		req.PostID, target, outcome.Kind.String(), outcome.Err,
	)

	status, message := respond(req.PostID, target, outcome)
	if status == http.StatusOK {
		writeJSON(w, status, DownloadResponse{Status: "success", Message: message, PostID: req.PostID})
		return
	}
	writeJSON(w, status, ErrorResponse{Status: "error", Detail: message, PostID: req.PostID})
}

// respond maps an outcome to its HTTP status and message
func respond(postID, target string, outcome retrieval.Outcome) (int, string) {
	switch outcome.Kind {
	case retrieval.Written:
		return http.StatusOK, fmt.Sprintf("Successfully downloaded post %s to %s", postID, target)
	case retrieval.AlreadyPresent:
		return http.StatusOK, fmt.Sprintf("Post %s already exists in %s", postID, target)
	case retrieval.BadResponse:
		return http.StatusBadRequest, fmt.Sprintf("Instagram returned a bad response: %s", outcome.Detail)
	case retrieval.ProfileNotFound:
		return http.StatusNotFound, "Profile or post not found"
	case retrieval.PostNotFound:
		return http.StatusNotFound, "Post not found"
	case retrieval.ConnectionFailure:
		return http.StatusServiceUnavailable, "Connection to Instagram failed"
	case retrieval.Unexpected:
		return http.StatusInternalServerError, outcome.Detail
	default:
		return http.StatusInternalServerError, fmt.Sprintf("unhandled retrieval outcome %s", outcome.Kind)
	}
}
