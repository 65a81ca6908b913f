package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const photoRoot = "./uploads/photos"

// mePhotoHandler handles POST (upload, multipart field "photo") and DELETE
// on /api/me/photo.
func mePhotoHandler(st Store) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		me := r.Context().Value(userIDKey).(int)

		if r.Method == http.MethodDelete {
			if err := removePhoto(st, me); err != nil {
				writeError(w, http.StatusInternalServerError, "Could not remove photo")
				log.Println("Error removing photo:", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		// Limit to ~5MB
		r.Body = http.MaxBytesReader(w, r.Body, 5<<20)
		if err := r.ParseMultipartForm(6 << 20); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "Photo too large or missing")
			return
		}
		f, _, err := r.FormFile("photo")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing photo file")
			return
		}
		defer f.Close()

		// Sniff MIME from the first bytes
		head := make([]byte, 512)
		n, _ := f.Read(head)
		ctype := http.DetectContentType(head[:n])
		ext := ""
		switch ctype {
		case "image/jpeg":
			ext = ".jpg"
		case "image/png":
			ext = ".png"
		default:
			writeError(w, http.StatusBadRequest, "Only JPEG and PNG photos are allowed")
			return
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			writeError(w, http.StatusInternalServerError, "Could not read photo")
			return
		}

		if err := os.MkdirAll(photoRoot, 0o755); err != nil {
			writeError(w, http.StatusInternalServerError, "Could not save photo")
			return
		}

		filename := fmt.Sprintf("%d%s", me, ext)
		dst := filepath.Join(photoRoot, filename)
		tmp := dst + ".tmp"

		out, err := os.Create(tmp)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not save photo")
			return
		}
		if _, err := io.Copy(out, f); err != nil {
			out.Close()
			writeError(w, http.StatusInternalServerError, "Could not save photo")
			return
		}
		out.Close()
		if err := os.Rename(tmp, dst); err != nil {
			writeError(w, http.StatusInternalServerError, "Could not save photo")
			return
		}

		if err := st.SetProfilePhoto(me, filename); err != nil {
			if errors.Is(err, ErrNotFound) {
				// The profile row has not been created yet; don't keep an
				// orphan file around.
				_ = os.Remove(dst)
				writeError(w, http.StatusConflict, "Create a profile before uploading a photo")
				return
			}
			writeError(w, http.StatusInternalServerError, "Could not save photo")
			log.Println("Error saving photo filename:", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"photoFile": filename})
	})
}

// GET /api/photos/{file} — photo files use opaque generated names, so
// serving is open; path traversal is blocked by basename-only lookups.
func getPhotoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// /api/photos/{file}
		if len(parts) != 3 {
			http.NotFound(w, r)
			return
		}
		filename := filepath.Base(parts[2])
		path := filepath.Join(photoRoot, filename)
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		contentType := "image/jpeg"
		if strings.HasSuffix(filename, ".png") {
			contentType = "image/png"
		}
		w.Header().Set("Content-Type", contentType)
		// Light cache - busted in frontend ?ts=timestamp
		w.Header().Set("Cache-Control", "private, max-age=3600")
		http.ServeFile(w, r, path)
	}
}

func removePhoto(st Store, userID int) error {
	p, err := st.GetProfile(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// No profile row; nothing to remove
			return nil
		}
		return err
	}
	if p.PhotoFile != "" {
		fullPath := filepath.Join(photoRoot, filepath.Base(p.PhotoFile))
		if rmErr := os.Remove(fullPath); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("error removing photo file %q: %w", fullPath, rmErr)
		}
	}
	return st.SetProfilePhoto(userID, "")
}
