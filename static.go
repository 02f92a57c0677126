// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// mimeTypes maps file extensions to content types; everything else is
// served as application/octet-stream.
var mimeTypes = map[string]string{
	"html": "text/html",
	"js":   "text/javascript",
	"css":  "text/css",
}

// staticHandler serves plain HTTP requests from a root directory. Paths are
// resolved through symlinks and must stay inside the root; anything else,
// missing, or not a regular file is a 404.
type staticHandler struct {
	root string
	log  *zap.Logger
}

func newStaticHandler(root string, log *zap.Logger) (*staticHandler, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("static root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("static root: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &staticHandler{root: resolved, log: log}, nil
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	urlPath := r.URL.Path
	if urlPath == "/" {
		urlPath = "/index.html"
	}

	full, ok := h.resolve(urlPath)
	if !ok {
		h.log.Info("http", zap.String("path", r.URL.Path), zap.Int("status", http.StatusNotFound))
		http.Error(w, "404 NOT FOUND", http.StatusNotFound)
		return
	}

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		h.log.Info("http", zap.String("path", r.URL.Path), zap.Int("status", http.StatusNotFound))
		http.Error(w, "404 NOT FOUND", http.StatusNotFound)
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(full), ".")
	mime, ok := mimeTypes[ext]
	if !ok {
		mime = "application/octet-stream"
	}

	f, err := os.Open(full)
	if err != nil {
		h.log.Warn("http open failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "404 NOT FOUND", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Connection", "close")
	h.log.Info("http", zap.String("path", r.URL.Path), zap.Int("status", http.StatusOK))
	io.Copy(w, f)
}

// resolve maps a URL path to an absolute filesystem path confined to the
// root. Symlinks are resolved before the containment check so a link cannot
// escape the root.
func (h *staticHandler) resolve(urlPath string) (string, bool) {
	full := filepath.Join(h.root, filepath.FromSlash(strings.TrimPrefix(urlPath, "/")))
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(h.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return resolved, true
}
