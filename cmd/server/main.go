package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/niceday-app/pdf-edit-service/internal/config"
	"github.com/niceday-app/pdf-edit-service/internal/docengine"
	"github.com/niceday-app/pdf-edit-service/internal/edit"
	"github.com/niceday-app/pdf-edit-service/internal/render"
	"github.com/niceday-app/pdf-edit-service/internal/types"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	cfg config.Config

	engine docengine.Engine

	requestSem *semaphore.Weighted

	// Per-IP rate limiters
	limiters = &sync.Map{}

	metrics = &serverMetrics{}
)

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}
func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}
func (m *serverMetrics) get() (total, active int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.activeReqs
}

func main() {
	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	requestSem = semaphore.NewWeighted(cfg.MaxConcurrentRequests)
	engine = docengine.NewPDFCPU()

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/api/health", handleHealth)
	mux.HandleFunc("/metrics", handleMetrics)

	mux.HandleFunc("/api/pdf/thumbs",
		withRateLimit(
			withMethod("POST",
				withConcurrencyLimit(handleThumbs))))

	mux.HandleFunc("/api/pdf/page",
		withRateLimit(
			withMethod("POST",
				withConcurrencyLimit(handlePage))))

	mux.HandleFunc("/api/pdf/export",
		withRateLimit(
			withMethod("POST",
				withConcurrencyLimit(handleExport))))

	maxHeaderBytes := 1 << 20
	if cfg.MaxHeaderBytes > 0 {
		maxHeaderBytes = cfg.MaxHeaderBytes
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           withLogging(withRecovery(withCORS(mux))),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	go housekeeping()

	fmt.Printf("pdfedit listening on %s (max concurrent: %d, origins: %s)\n",
		srv.Addr, cfg.MaxConcurrentRequests, strings.Join(cfg.AllowedOrigins, ","))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func housekeeping() {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		total, active := metrics.get()
		fmt.Printf("[stats] active=%d total=%d goroutines=%d mem=%dMB\n",
			active, total, runtime.NumGoroutine(), m.Alloc/(1<<20))

		limiters = &sync.Map{}
	}
}

// ---------- Handlers ----------

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeErr(w, http.StatusNotFound, "not_found", "Unknown path")
		return
	}
	// Keep hosting-platform root probes quiet.
	http.Redirect(w, r, "/api/health", http.StatusTemporaryRedirect)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active := metrics.get()
	status := "healthy"
	code := http.StatusOK

	ratio := cfg.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}

	if active >= int64(float64(cfg.MaxConcurrentRequests)*ratio) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"active":  active,
		"version": "1.0.0",
	})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	total, active := metrics.get()

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests": active,
		"totalRequests":  total,
		"goroutines":     runtime.NumGoroutine(),
		"memAllocMB":     m.Alloc / (1 << 20),
		"memSysMB":       m.Sys / (1 << 20),
	})
}

func handleThumbs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), cfg.ThumbsTimeout)
	defer cancel()

	pdfPath, cleanup, err := savePDFToTemp(w, r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}
	defer cleanup()

	scale := render.Clamp(formFloat(r, "scale", cfg.ThumbScale), 0.05, 2.0)

	thumbs, err := render.Thumbnails(ctx, pdfPath, scale)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "thumbs_failed", sanitizeError(err))
		return
	}

	writeJSON(w, http.StatusOK, types.ThumbsResult{Count: len(thumbs), Thumbs: thumbs})
}

func handlePage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), cfg.PageTimeout)
	defer cancel()

	pdfPath, cleanup, err := savePDFToTemp(w, r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}
	defer cleanup()

	infoCtx, cancelInfo := context.WithTimeout(ctx, cfg.PDFInfoTimeout)
	count, err := render.PageCount(infoCtx, pdfPath)
	cancelInfo()
	if err != nil || count <= 0 {
		writeErr(w, http.StatusBadRequest, "page_render_failed", sanitizeError(err))
		return
	}

	// Clamp into range rather than erroring; previews tolerate sloppy input.
	page := formInt(r, "page", 0)
	if page < 0 {
		page = 0
	}
	if page > count-1 {
		page = count - 1
	}
	scale := render.Clamp(formFloat(r, "scale", cfg.PreviewScale), 0.3, 4.0)

	renderCtx, cancelRender := context.WithTimeout(ctx, cfg.PDFToPPMTimeout)
	defer cancelRender()
	png, err := render.Page(renderCtx, pdfPath, page, scale)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "page_render_failed", sanitizeError(err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func handleExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), cfg.ExportTimeout)
	defer cancel()

	if err := parseMultipart(w, r); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}

	pdfBytes, err := readFormFile(r, "pdf", cfg.MaxPDFBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}

	// The addressing mode is explicit per batch, never inferred from tags.
	mode, err := edit.ParseAddressingMode(r.FormValue("overlay_mode"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}

	overlays, err := readOverlays(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}

	out, err := edit.ApplyEditBatch(ctx, engine, edit.Request{
		PDF:          pdfBytes,
		DeletionRefs: parseDeletionRefs(r.FormValue("deletions")),
		Overlays:     overlays,
		TextEdits:    parseTextEdits(r.FormValue("text_edits")),
		Mode:         mode,
	})
	if err != nil {
		writeErr(w, http.StatusBadRequest, "export_failed", sanitizeError(err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="edited.pdf"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// ---------- Middleware ----------

func withMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method must be "+method)
			return
		}
		next(w, r)
	}
}

func withConcurrencyLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requestSem.Acquire(r.Context(), 1); err != nil {
			writeErr(w, http.StatusServiceUnavailable, "capacity", "Service at capacity")
			return
		}
		defer requestSem.Release(1)

		metrics.incActive()
		defer metrics.decActive()

		next(w, r)
	}
}

func withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		limiter := getRateLimiter(ip)

		if !limiter.Allow() {
			w.Header().Set("Retry-After", "60")
			writeErr(w, http.StatusTooManyRequests, "rate_limit", "Rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// withCORS applies the origin policy loaded at startup. The origin list is
// immutable for the lifetime of the process.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case cfg.AllowsAnyOrigin():
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && cfg.AllowsOrigin(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				fmt.Fprintf(os.Stderr, "panic: %v\n", err)
				writeErr(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &wrapWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		fmt.Printf("%s %s -> %d (%s)\n",
			r.Method, sanitizeLogString(r.URL.Path), ww.status, time.Since(start))
	})
}

type wrapWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrapWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// ---------- Request parsing ----------

// pageTag pulls the embedded page reference out of an opaque tag such as
// "overlay_0.png", "overlay-12.png" or "12.png": the last integer wins.
// Everything else in the tag (prefixes, extensions) is ignored.
var tagDigits = regexp.MustCompile(`(\d+)`)

func pageTag(name string) (int, bool) {
	m := tagDigits.FindAllString(name, -1)
	if len(m) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(m[len(m)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseDeletionRefs flattens the "deletions" form field (a JSON array of
// mixed-validity values) into raw string refs for the engine's normalizer.
// Unparsable JSON yields no refs; per-entry validation happens downstream.
func parseDeletionRefs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var arr []any
	if err := dec.Decode(&arr); err != nil {
		return nil
	}

	refs := make([]string, 0, len(arr))
	for _, v := range arr {
		switch t := v.(type) {
		case json.Number:
			refs = append(refs, t.String())
		case string:
			refs = append(refs, t)
		default:
			refs = append(refs, fmt.Sprint(t))
		}
	}
	return refs
}

// parseTextEdits decodes the "text_edits" form field. A malformed field is
// treated like any other malformed input entry: dropped, not fatal.
func parseTextEdits(raw string) []types.TextReplacementEdit {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var edits []types.TextReplacementEdit
	if err := json.Unmarshal([]byte(raw), &edits); err != nil {
		fmt.Fprintf(os.Stderr, "export: dropping malformed text_edits: %v\n", err)
		return nil
	}
	for i := range edits {
		edits[i].Align = types.ParseAlignment(string(edits[i].Align))
	}
	return edits
}

func readOverlays(r *http.Request) ([]types.OverlayEdit, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File["overlays"]

	out := make([]types.OverlayEdit, 0, len(files))
	for _, fh := range files {
		idx, ok := pageTag(fh.Filename)
		if !ok {
			continue
		}
		b, err := readMultipartFile(fh, cfg.MaxOverlayBytes)
		if err != nil {
			return nil, fmt.Errorf("overlay %q: %w", fh.Filename, err)
		}
		out = append(out, types.OverlayEdit{Tag: fh.Filename, Page: idx, Image: b})
	}
	return out, nil
}

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxMultipartBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return fmt.Errorf("multipart parse: %w", err)
	}
	return nil
}

func readFormFile(r *http.Request, field string, limit int64) ([]byte, error) {
	f, fh, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s file required: %w", field, err)
	}
	defer f.Close()

	if fh.Size > limit {
		return nil, fmt.Errorf("%s exceeds %dMB limit", field, limit/(1<<20))
	}
	b, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%s exceeds %dMB limit", field, limit/(1<<20))
	}
	return b, nil
}

func readMultipartFile(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("exceeds %dMB limit", limit/(1<<20))
	}
	return b, nil
}

// savePDFToTemp parses the multipart body and spools the "pdf" field to a
// temp file for the CLI renderer. cleanup removes the whole temp dir.
func savePDFToTemp(w http.ResponseWriter, r *http.Request) (path string, cleanup func(), err error) {
	if err := parseMultipart(w, r); err != nil {
		return "", func() {}, err
	}

	b, err := readFormFile(r, "pdf", cfg.MaxPDFBytes)
	if err != nil {
		return "", func() {}, err
	}
	if len(b) < 5 || string(b[:4]) != "%PDF" {
		return "", func() {}, fmt.Errorf("uploaded file is not a PDF")
	}

	tmpDir, err := os.MkdirTemp("", "pdfedit-upload-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("temp dir: %w", err)
	}
	cleanup = func() { _ = os.RemoveAll(tmpDir) }

	outPath := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(outPath, b, 0o600); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("write: %w", err)
	}
	return outPath, cleanup, nil
}

// ---------- Helpers ----------

func getRateLimiter(ip string) *rate.Limiter {
	if v, ok := limiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}

	every := cfg.RateLimitEvery
	if every <= 0 {
		every = 600 * time.Millisecond // ~100/min
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 20
	}

	limiter := rate.NewLimiter(rate.Every(every), burst)
	limiters.Store(ip, limiter)
	return limiter
}

func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if idx := strings.Index(ip, ","); idx > 0 {
			return strings.TrimSpace(ip[:idx])
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func formFloat(r *http.Request, field string, fallback float64) float64 {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func formInt(r *http.Request, field string, fallback int) int {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, os.TempDir(), "[tmp]")
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func sanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
