package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/alnah/go-doc2img"
)

// fileField is the multipart field carrying the document.
const fileField = "file"

type imageJSON struct {
	Name   string `json:"name"`
	Index  int    `json:"index"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	PNG    []byte `json:"png"`
}

type failureJSON struct {
	Name    string       `json:"name"`
	Index   int          `json:"index"`
	Kind    doc2img.Kind `json:"kind"`
	Message string       `json:"message"`
}

type errorJSON struct {
	Kind    doc2img.Kind `json:"kind"`
	Message string       `json:"message"`
}

type convertResponse struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Summary   string        `json:"summary"`
	Images    []imageJSON   `json:"images"`
	Failures  []failureJSON `json:"failures,omitempty"`
	Error     *errorJSON    `json:"error,omitempty"`
}

type formatsResponse struct {
	Extensions []string                  `json:"extensions"`
	Formats    map[string]doc2img.Format `json:"formats"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFormats(w http.ResponseWriter, _ *http.Request) {
	exts := doc2img.SupportedExtensions()
	formats := make(map[string]doc2img.Format, len(exts))
	for _, ext := range exts {
		f, _ := doc2img.DetectFormat("file" + ext)
		formats[ext] = f
	}
	writeJSON(w, http.StatusOK, formatsResponse{Extensions: exts, Formats: formats})
}

// handleConvert streams the uploaded part straight into the converter;
// nothing is buffered by the multipart layer.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)

	part, err := filePart(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, doc2img.KindDownload, err.Error())
		return
	}
	defer part.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.conv.Convert(ctx, doc2img.Request{
		Name:   part.FileName(),
		Format: doc2img.Format(r.URL.Query().Get("format")),
		Source: func(context.Context) (io.ReadCloser, error) { return part, nil },
	})

	status := http.StatusOK
	if err != nil {
		status = statusFor(doc2img.KindOf(err))
		if doc2img.IsRetryable(err) {
			w.Header().Set("Retry-After", "1")
		}
		s.logger.Debug("conversion error", "id", middleware.GetReqID(r.Context()), "err", err)
	}
	writeJSON(w, status, toResponse(res, err))
}

// filePart returns the first part named fileField.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("expected multipart/form-data upload: %v", err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing %q field", fileField)
		}
		if err != nil {
			return nil, fmt.Errorf("reading upload: %v", err)
		}
		if part.FormName() == fileField {
			if strings.TrimSpace(part.FileName()) == "" {
				_ = part.Close()
				return nil, fmt.Errorf("%q field has no file name", fileField)
			}
			return part, nil
		}
		_ = part.Close()
	}
}

func toResponse(res *doc2img.Result, err error) convertResponse {
	out := convertResponse{Images: []imageJSON{}}
	if res != nil {
		out.ID = res.ID
		out.Name = res.Name
		out.Total = res.Total
		out.Succeeded = res.Succeeded()
		out.Summary = res.Summary()
		for _, img := range res.Images {
			out.Images = append(out.Images, imageJSON{
				Name:   img.Name,
				Index:  img.Index,
				Width:  img.Width,
				Height: img.Height,
				PNG:    img.PNG,
			})
		}
		for _, f := range res.Failures {
			out.Failures = append(out.Failures, failureJSON{
				Name:    f.Name,
				Index:   f.Index,
				Kind:    doc2img.KindOf(f.Err),
				Message: doc2img.UserMessage(f.Err),
			})
		}
	}
	if err != nil {
		out.Error = &errorJSON{Kind: doc2img.KindOf(err), Message: doc2img.UserMessage(err)}
	}
	return out
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind doc2img.Kind) int {
	switch kind {
	case doc2img.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case doc2img.KindDownload:
		return http.StatusBadRequest
	case doc2img.KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case doc2img.KindParse:
		return http.StatusUnprocessableEntity
	case doc2img.KindEngineCrashed, doc2img.KindRenderTimeout:
		return http.StatusServiceUnavailable
	case doc2img.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, kind doc2img.Kind, msg string) {
	writeJSON(w, status, convertResponse{
		Images: []imageJSON{},
		Error:  &errorJSON{Kind: kind, Message: msg},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
