package dirserve

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// IndexFiles are served in place of a listing when present in a directory.
var IndexFiles = []string{"index.html", "index.htm"}

type Handler struct {
	fs fs.StatFS
}

func NewHandler(fsys fs.StatFS) *Handler {
	slog.Debug("handler created", "root", fsys)
	return &Handler{fs: fsys}
}

// Exists reports whether the request path maps onto an existing name.
func (h *Handler) Exists(urlPath string) bool {
	t, code := resolve(urlPath)
	if code != 0 {
		return false
	}
	_, err := h.fs.Stat(t.name)
	return err == nil
}

func (h *Handler) fail(res http.ResponseWriter, code int) int {
	http.Error(res, http.StatusText(code), code)
	return code
}

func statusFor(err error) int {
	if errors.Is(err, fs.ErrPermission) {
		return http.StatusForbidden
	}
	return http.StatusNotFound
}

func (h *Handler) serveHTTP(res http.ResponseWriter, req *http.Request) int {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		res.Header().Set("Allow", "GET, HEAD")
		return h.fail(res, http.StatusNotImplemented)
	}
	t, code := resolve(req.URL.Path)
	if code != 0 {
		slog.Warn("refused path", "path", req.URL.Path, "status", code)
		return h.fail(res, code)
	}
	info, err := h.fs.Stat(t.name)
	if err != nil {
		slog.Error("stat failed", "path", t.name, "error", err)
		return h.fail(res, statusFor(err))
	}
	if info.IsDir() {
		return h.serveDir(res, req, t)
	}
	if t.trailing {
		return h.fail(res, http.StatusNotFound)
	}
	return h.serveFile(res, req, t.name, info)
}

func (h *Handler) serveDir(res http.ResponseWriter, req *http.Request, t target) int {
	if !t.trailing {
		loc := (&url.URL{Path: t.urlPath + "/"}).EscapedPath()
		if req.URL.RawQuery != "" {
			loc += "?" + req.URL.RawQuery
		}
		res.Header().Set("Location", loc)
		res.WriteHeader(http.StatusMovedPermanently)
		return http.StatusMovedPermanently
	}
	for _, idx := range IndexFiles {
		name := path.Join(t.name, idx)
		if info, err := h.fs.Stat(name); err == nil && !info.IsDir() {
			return h.serveFile(res, req, name, info)
		}
	}
	body, err := listDir(h.fs, t.name, t.urlPath)
	if err != nil {
		slog.Error("list directory failed", "path", t.name, "error", err)
		return h.fail(res, statusFor(err))
	}
	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	res.Header().Set("Content-Length", strconv.Itoa(len(body)))
	res.WriteHeader(http.StatusOK)
	if req.Method != http.MethodHead {
		if _, err := res.Write(body); err != nil {
			slog.Error("write listing", "path", t.name, "error", err)
		}
	}
	return http.StatusOK
}

func (h *Handler) contentType(name string) string {
	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		return ctype
	}
	ctype := "application/octet-stream"
	if fp0, err := h.fs.Open(name); err == nil {
		defer fp0.Close()
		buf := make([]byte, 512)
		if n, err := io.ReadFull(fp0, buf); n > 0 {
			ctype = http.DetectContentType(buf[:n])
		} else if err != nil && err != io.EOF {
			slog.Error("read for content-type failed", "path", name, "error", err)
		}
	} else {
		slog.Error("open original", "path", name, "error", err)
	}
	return ctype
}

func notModified(req *http.Request, modtime time.Time) bool {
	if modtime.IsZero() || req.Header.Get("If-None-Match") != "" {
		return false
	}
	ims := req.Header.Get("If-Modified-Since")
	if ims == "" {
		return false
	}
	t, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !modtime.Truncate(time.Second).After(t)
}

func (h *Handler) serveFile(res http.ResponseWriter, req *http.Request, name string, info fs.FileInfo) int {
	var fp fs.File
	modtime := info.ModTime()
	if !modtime.IsZero() {
		res.Header().Set("Last-Modified", modtime.UTC().Format(http.TimeFormat))
	}
	res.Header().Set("Vary", "Accept-Encoding")
	if notModified(req, modtime) {
		res.WriteHeader(http.StatusNotModified)
		return http.StatusNotModified
	}
	contentLength := info.Size()
	encoded := false
	res.Header().Set("Content-Type", h.contentType(name))
	for _, ae := range accepts(req.Header.Get("Accept-Encoding")) {
		cinfo, err := h.fs.Stat(name + ae.ext)
		if err != nil || !cinfo.Mode().IsRegular() {
			continue
		}
		if cinfo.ModTime().Round(time.Second).Before(modtime.Round(time.Second)) {
			slog.Warn("encoded file is older than original", "path", name, "ext", ae.ext, "diff", modtime.Sub(cinfo.ModTime()))
			continue
		}
		if cinfo.Size() > info.Size() {
			slog.Info("encoded file is larger than original, skip", "path", name, "ext", ae.ext, "original", info.Size(), "encoded", cinfo.Size())
			continue
		}
		fp, err = h.fs.Open(name + ae.ext)
		if err != nil {
			slog.Error("open error", "path", name, "ext", ae.ext, "error", err)
			continue
		}
		defer fp.Close()
		res.Header().Set("Content-Encoding", ae.encode)
		contentLength = cinfo.Size()
		slog.Debug("encoded file", "path", name, "ext", ae.ext)
		encoded = true
		break
	}
	if !encoded {
		var err error
		fp, err = h.fs.Open(name)
		if err != nil {
			slog.Error("open error", "path", name, "error", err)
			return h.fail(res, statusFor(err))
		}
		defer fp.Close()
	}
	res.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
	res.WriteHeader(http.StatusOK)
	if req.Method == http.MethodHead {
		return http.StatusOK
	}
	if _, err := io.Copy(res, fp); err != nil {
		slog.Error("copy error", "path", name, "error", err)
	}
	return http.StatusOK
}

func (h *Handler) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	st := time.Now()
	id := uuid.NewString()
	res.Header().Set("X-Request-Id", id)
	code := h.serveHTTP(res, req)
	slog.Info("accesslog", "id", id, "method", req.Method, "path", req.URL.Path, "remote", req.RemoteAddr, "req-header", req.Header, "status", code, "res-header", res.Header(), "elapsed_ns", time.Since(st))
}
