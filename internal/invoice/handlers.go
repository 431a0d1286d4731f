package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/uzair166/invoiceprocessor/internal/apperr"
	"github.com/uzair166/invoiceprocessor/internal/logging"
	"github.com/uzair166/invoiceprocessor/internal/scanning"
)

// multipartOverhead is allowed on top of MaxUploadSize for form boundaries and fields
const multipartOverhead = 1 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type errorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type multiResponse struct {
	Invoices []*Record `json:"invoices"`
	Saved    int       `json:"saved"`
	Failed   int       `json:"failed"`
	Partial  bool      `json:"partial"`
	Error    string    `json:"error,omitempty"`
}

type deleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// statusFor maps an error kind to an HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput, apperr.EmptyDocument:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context(), s.logger).Error("Error encoding response", "error", err)
	}
}

// writeError reports err to the client with the status of its kind. Details
// carry the underlying cause and are left out in production.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	code := statusFor(kind)

	log := logging.FromContext(r.Context(), s.logger)
	if code >= http.StatusInternalServerError {
		log.Error("Request failed", "kind", kind, "error", err)
	} else {
		log.Warn("Request rejected", "kind", kind, "error", err)
	}

	resp := errorResponse{
		Error:     apperr.MessageOf(err),
		RequestID: logging.RequestID(r.Context()),
	}
	if !s.cfg.Production {
		resp.Details = err.Error()
	}
	s.writeJSON(w, r, code, resp)
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExtract accepts a PDF under the "file" form field and runs it
// through the extraction pipeline
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	mode, err := scanning.ParseMode(r.URL.Query().Get("mode"), s.cfg.DefaultMode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	upload, err := readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	result, err := s.service.ProcessInvoice(ctx, upload, mode)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !apperr.Is(err, apperr.Timeout) {
			err = apperr.New(apperr.Timeout, err)
		}
		s.writeError(w, r, err)
		return
	}

	if mode != scanning.ModeMulti {
		if len(result.Invoices) == 0 {
			s.writeError(w, r, apperr.New(apperr.EmptyModelResponse, errors.New("no invoice in response")))
			return
		}
		s.writeJSON(w, r, http.StatusOK, result.Invoices[0])
		return
	}

	resp := multiResponse{
		Invoices: result.Invoices,
		Saved:    len(result.Invoices),
		Failed:   result.Failed,
		Partial:  result.Partial(),
	}
	if result.Err != nil {
		resp.Error = apperr.MessageOf(result.Err)
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

// readUpload pulls the file out of a multipart request. A request without
// a file yields a nil upload, which the pipeline rejects as missing.
func readUpload(w http.ResponseWriter, r *http.Request) (*Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(MaxUploadSize + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperr.Invalid(apperr.ReasonTooLarge)
		}
		return nil, nil
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.New(apperr.Internal, fmt.Errorf("reading upload: %w", err))
	}

	return &Upload{
		Filename:    header.Filename,
		ContentType: uploadContentType(header.Header.Get("Content-Type"), header.Filename),
		Size:        header.Size,
		Data:        data,
	}, nil
}

// uploadContentType returns the declared media type without parameters,
// falling back to the file extension when none was sent
func uploadContentType(declared, filename string) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
		return strings.ToLower(strings.TrimSpace(declared))
	}
	if strings.ToLower(filepath.Ext(filename)) == ".pdf" {
		return PDFContentType
	}
	return "application/octet-stream"
}

// handleListInvoices returns all invoices, newest first
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListInvoices(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, records)
}

// handleGetInvoice returns a single invoice
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, record)
}

// handleDeleteInvoice deletes the invoice named by the id query parameter
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if err := s.service.DeleteInvoice(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, deleteResponse{ID: id, Deleted: true})
}

// handleExport downloads all invoices as a spreadsheet
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportXLSX(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context(), s.logger).Error("Error writing export", "error", err)
	}
}
