package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	applog "moneta/internal/log"
	"moneta/internal/services"
)

// multipart parts beyond this are spooled to disk by net/http.
const multipartMemory = 8 << 20

// handleImport accepts a multipart upload in the "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.ImportMaxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if !errors.As(err, &maxBytes) {
			err = badRequest("expected multipart form with a file field")
		}
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, applog.OpImport, badRequest("missing file field"))
		return
	}
	defer file.Close()

	result, err := s.svc.Importer.Import(r.Context(), header.Filename, file)
	if result.Imported > 0 {
		s.invalidate()
	}
	if err != nil {
		if errors.Is(err, services.ErrNoValidRows) {
			view := newImportView(result)
			view.Error = err.Error()
			NewResponse().Status(http.StatusUnprocessableEntity).JSON(view).Write(w)
			return
		}
		s.writeError(w, r, applog.OpImport, err)
		return
	}

	s.events.LogImport(r.Context(), header.Filename, result.BatchID, result.Imported, result.Skipped)

	msg := fmt.Sprintf("Imported %d transactions", result.Imported)
	if result.Skipped > 0 {
		msg += fmt.Sprintf(", skipped %d rows", result.Skipped)
	}
	NewResponse().
		TriggerTransactionsChanged(applog.OpImport).
		TriggerSuccessNotification(msg).
		JSON(newImportView(result)).
		Write(w)
}

// handleExport downloads the filtered transactions as a CSV attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	f, err := ParseFilter(r.URL.Query(), s.cfg.Now())
	if err != nil {
		s.writeError(w, r, applog.OpExport, err)
		return
	}

	var buf bytes.Buffer
	n, err := s.svc.Exporter.Export(r.Context(), f, &buf)
	if err != nil {
		s.writeError(w, r, applog.OpExport, err)
		return
	}

	filename := services.ExportFileName(s.cfg.Now())
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transactions exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldFile, filename,
		"rows", n)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleClear deletes every transaction and resets categories to defaults.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	deleted, err := s.svc.Transactions.ClearAll(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpClear, err)
		return
	}
	s.invalidate()

	NewResponse().
		TriggerTransactionsChanged(applog.OpClear).
		TriggerSuccessNotification("All data cleared").
		JSON(map[string]int64{"deleted": deleted}).
		Write(w)
}
