// Package frontend serves the embedded OS logos referenced by the static
// summary.
package frontend

import (
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"path"
	"strings"
)

//go:embed os_logos/*.svg
var logoFiles embed.FS

var ErrLogoNotFound = errors.New("logo not found")

var logos = mustSub(logoFiles, "os_logos")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// Lookup returns the raw bytes of an embedded logo. Names with path
// separators are rejected.
func Lookup(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, ErrLogoNotFound
	}
	data, err := fs.ReadFile(logos, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrLogoNotFound
		}
		return nil, err
	}
	return data, nil
}

// DataURI returns the logo as a base64 data URI.
func DataURI(name string) (string, error) {
	data, err := Lookup(name)
	if err != nil {
		return "", err
	}
	return "data:" + mimeType(name) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func mimeType(name string) string {
	switch path.Ext(name) {
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	}
	return "application/octet-stream"
}

// LogoHandler serves GET {prefix}/{file} as {"img":"data:..."}.
func LogoHandler(prefix string) http.Handler {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"code": http.StatusMethodNotAllowed, "message": "Method Not Allowed"})
			return
		}
		name := strings.TrimPrefix(r.URL.Path, prefix)
		uri, err := DataURI(name)
		switch {
		case errors.Is(err, ErrLogoNotFound):
			writeJSON(w, http.StatusNotFound, map[string]any{"code": http.StatusNotFound, "message": "Not Found"})
		case err != nil:
			log.Printf("logo %s: %v", name, err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"code": http.StatusInternalServerError, "message": err.Error()})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"img": uri})
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
