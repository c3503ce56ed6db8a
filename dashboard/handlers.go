package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/structura/docpipe"
	"github.com/hazyhaar/structura/export"
	"github.com/hazyhaar/structura/horosafe"
	"github.com/hazyhaar/structura/kit"
	"github.com/hazyhaar/structura/observability"
	"github.com/hazyhaar/structura/shield"
	"github.com/hazyhaar/structura/store"
	"github.com/hazyhaar/structura/structurer"
	"github.com/hazyhaar/structura/theme"
)

// OutputFormats are the formats an upload may request. The first requested
// one drives the structuring prompt; the rest select export artifacts.
var OutputFormats = []string{"json", "csv", "table", "excel", "summary"}

// DefaultFormats are used when an upload names none.
var DefaultFormats = []string{"json", "summary"}

const maxPromptLen = 8000

// errBadUpload marks client mistakes in an upload (400).
var errBadUpload = errors.New("invalid upload")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(s.uptime().Seconds()),
	})
}

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Themes.List())
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.cfg.Themes.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	css, err := s.cfg.Themes.Stylesheet(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		theme.Theme
		CSS string `json:"css"`
	}{t, css.CSS})
}

// handleThemeCSS serves the resolved stylesheet of ?theme=, the theme
// cookie, or the default theme, with an ETag for conditional requests.
func (s *Server) handleThemeCSS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("theme")
	if id == "" {
		id = s.themeOf(r)
	}
	css, err := s.cfg.Themes.Stylesheet(id)
	if errors.Is(err, theme.ErrUnknownTheme) {
		http.Error(w, "unknown theme", http.StatusNotFound)
		return
	}
	if err != nil {
		shield.GetLogger(r.Context()).Error("theme css failed", "theme", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("ETag", css.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == css.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	io.WriteString(w, css.CSS)
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"input":         docpipe.SupportedFormats(),
		"output":        OutputFormats,
		"default":       DefaultFormats,
		"max_file_size": s.cfg.Extract.MaxFileSize(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := map[string]any{
		"uptime_seconds": int(s.uptime().Seconds()),
	}
	if s.cfg.Monitor != nil {
		out["performance"] = s.cfg.Monitor.Summary()
	}
	if s.cfg.Structurer != nil {
		if cs, err := s.cfg.Structurer.CacheStats(ctx); err == nil {
			out["cache"] = cs
		}
		out["model"] = s.cfg.Structurer.Model()
	}
	if n, err := s.cfg.Worker.Len(ctx); err == nil {
		out["queue_length"] = n
	}
	if counts, err := s.cfg.Store.Counts(ctx); err == nil {
		out["documents"] = counts
	}
	if s.cfg.Breaker != nil {
		out["ai_circuit"] = s.cfg.Breaker.State().String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.cfg.Store.List(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if docs == nil {
		docs = []*store.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}
	events, _ := s.cfg.Events.Recent(r.Context(), doc.ID, 20)
	writeJSON(w, http.StatusOK, struct {
		*store.Document
		Events []observability.Event `json:"events,omitempty"`
	}{doc, events})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	doc, code, err := s.accept(r)
	if err != nil {
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": doc.ID, "status": string(doc.Status)})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	code, err := s.remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, code, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport writes the document's artifacts on demand and sends the one
// named by label.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	doc, ok := s.document(w, r)
	if !ok {
		return
	}
	name, known := export.FileName(baseName(doc.Name), label)
	if !known {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown export %q", label))
		return
	}
	if doc.Status != store.StatusDone {
		writeError(w, http.StatusConflict, fmt.Errorf("document is %s", doc.Status))
		return
	}
	var res structurer.Result
	if err := doc.DecodeResult(&res); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	dir, err := horosafe.SafePath(s.cfg.ExportDir, doc.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	files, err := export.ExportResults(&res, dir, baseName(doc.Name), doc.Formats)
	path, produced := files[label]
	if !produced {
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeError(w, http.StatusNotFound, fmt.Errorf("export %q not available for this document", label))
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.cfg.Events.Log(r.Context(), observability.Event{
		Type: observability.EventExported, DocumentID: doc.ID,
		UserID: kit.GetUserID(r.Context()), Details: label, Success: true,
	})
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// accept spools the multipart upload, validates it, records the document
// and queues it. The returned code is the HTTP status for err.
func (s *Server) accept(r *http.Request) (*store.Document, int, error) {
	ctx := r.Context()
	log := shield.GetLogger(ctx)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file too large (max %d bytes)", s.cfg.Extract.MaxFileSize())
		}
		return nil, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadUpload, err)
	}
	defer r.MultipartForm.RemoveAll()

	formats, err := parseFormats(r.MultipartForm.Value["formats"])
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if len(prompt) > maxPromptLen {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: prompt longer than %d bytes", errBadUpload, maxPromptLen)
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: file is required", errBadUpload)
	}
	defer file.Close()

	name := horosafe.SafeFilename(hdr.Filename)
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	path := filepath.Join(s.cfg.UploadDir, s.spoolID()+"_"+name)
	if err := spool(path, file); err != nil {
		log.Error("upload spool failed", "name", name, "error", err)
		return nil, http.StatusInternalServerError, errors.New("could not store upload")
	}

	v := s.cfg.Extract.Validate(path)
	if !v.Valid {
		os.Remove(path)
		return nil, http.StatusBadRequest, fmt.Errorf("%w: %s", errBadUpload, v.Error)
	}

	doc := &store.Document{Name: name, Path: path, Kind: string(v.Kind), Size: v.Size, Formats: formats, Prompt: prompt}
	if err := s.cfg.Store.Create(ctx, doc); err != nil {
		os.Remove(path)
		return nil, http.StatusInternalServerError, err
	}
	if err := s.cfg.Worker.Submit(ctx, doc); err != nil {
		s.cfg.Store.Fail(ctx, doc.ID, err.Error())
		return nil, http.StatusInternalServerError, err
	}
	s.cfg.Events.Log(ctx, observability.Event{
		Type: observability.EventUploaded, DocumentID: doc.ID,
		UserID: kit.GetUserID(ctx), Details: name, Success: true,
	})
	log.Info("document uploaded", "document_id", doc.ID, "name", name, "size", v.Size, "kind", v.Kind)
	return doc, http.StatusAccepted, nil
}

// remove cancels a queued job, deletes the row and the document's files.
func (s *Server) remove(ctx context.Context, id string) (int, error) {
	doc, err := s.cfg.Store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, err
	}
	if err != nil {
		return http.StatusInternalServerError, err
	}
	if _, err := s.cfg.Worker.Cancel(ctx, id); err != nil {
		return http.StatusInternalServerError, err
	}
	if err := s.cfg.Store.Delete(ctx, id); err != nil {
		return http.StatusInternalServerError, err
	}
	if doc.Path != "" {
		os.Remove(doc.Path)
	}
	if dir, err := horosafe.SafePath(s.cfg.ExportDir, id); err == nil {
		os.RemoveAll(dir)
	}
	s.cfg.Events.Log(ctx, observability.Event{
		Type: observability.EventDeleted, DocumentID: id,
		UserID: kit.GetUserID(ctx), Details: doc.Name, Success: true,
	})
	shield.GetLogger(ctx).Info("document deleted", "document_id", id)
	return http.StatusNoContent, nil
}

// document loads {id} or answers 404/500 itself.
func (s *Server) document(w http.ResponseWriter, r *http.Request) (*store.Document, bool) {
	doc, err := s.cfg.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return doc, true
}

// parseFormats accepts repeated fields and comma separated lists, keeps
// first-seen order and drops duplicates.
func parseFormats(values []string) ([]string, error) {
	var out []string
	for _, v := range values {
		for f := range strings.SplitSeq(v, ",") {
			f = strings.ToLower(strings.TrimSpace(f))
			if f == "" {
				continue
			}
			if f == "xlsx" {
				f = "excel"
			}
			if !slices.Contains(OutputFormats, f) {
				return nil, fmt.Errorf("%w: unknown format %q", errBadUpload, f)
			}
			if !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
	}
	if len(out) == 0 {
		return slices.Clone(DefaultFormats), nil
	}
	return out, nil
}

func spool(path string, src io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
