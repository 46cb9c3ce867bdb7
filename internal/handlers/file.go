package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/dbkeeper/internal/backup"
)

// FileHandler exposes stored archive files: list, download, delete. Every
// filename crossing this boundary is validated against the archive naming
// charset before it touches the filesystem.
type FileHandler struct {
	Dir string
}

type fileEntry struct {
	Name      string    `json:"name"`
	JobID     string    `json:"job_id"`
	Cadence   string    `json:"cadence"`
	Timestamp string    `json:"timestamp"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
}

// ListFiles returns all stored archives, newest first. Files in the backup
// directory that do not follow the naming scheme are skipped.
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.Dir)
	if err != nil && !os.IsNotExist(err) {
		slog.Error("list backup dir", "dir", h.Dir, "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	files := []fileEntry{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, ok := backup.ParseFilename(e.Name())
		if !ok {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileEntry{
			Name:      e.Name(),
			JobID:     info.JobID,
			Cadence:   info.Cadence,
			Timestamp: info.Timestamp,
			Size:      fi.Size(),
			ModTime:   fi.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": files,
		"total": len(files),
	})
}

// DownloadFile streams one archive as an attachment.
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !backup.ValidFilename(name) {
		JSONError(w, "invalid file name", http.StatusBadRequest)
		return
	}

	f, err := os.Open(filepath.Join(h.Dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			JSONError(w, "file not found", http.StatusNotFound)
			return
		}
		slog.Error("open archive", "file", name, "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		JSONError(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(fi.Size(), 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, f); err != nil {
		slog.Warn("stream archive", "file", name, "err", err)
	}
}

// DeleteFile removes one archive.
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !backup.ValidFilename(name) {
		JSONError(w, "invalid file name", http.StatusBadRequest)
		return
	}

	if err := os.Remove(filepath.Join(h.Dir, name)); err != nil {
		if os.IsNotExist(err) {
			JSONError(w, "file not found", http.StatusNotFound)
			return
		}
		slog.Error("delete archive", "file", name, "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
