package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/capture/store"
)

// DefaultCallsLimit caps /calls when no limit is given.
const DefaultCallsLimit = 100

// EventFileInfo is one entry of the /events listing.
type EventFileInfo struct {
	Name        string `json:"name"`
	TimestampMs int64  `json:"timestampMs"`
}

// EventFileResponse is the body of /events/{name}.
type EventFileResponse struct {
	Name    string               `json:"name"`
	Records []capture.CallRecord `json:"records"`
	Skipped int                  `json:"skipped"`
}

// CallsResponse is the body of /calls.
type CallsResponse struct {
	Tag     string               `json:"tag,omitempty"`
	Records []capture.CallRecord `json:"records"`
	Skipped int                  `json:"skipped"`
}

// RegistryHandler serves the call-site registry.
func RegistryHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			writeError(w, http.StatusServiceUnavailable, "no data folder configured")
			return
		}
		reg, err := st.ReadRegistry(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, reg)
	}
}

// EventFilesHandler lists event files oldest first.
func EventFilesHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			writeError(w, http.StatusServiceUnavailable, "no data folder configured")
			return
		}
		files, err := st.ListEventFiles(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]EventFileInfo, 0, len(files))
		for _, f := range files {
			out = append(out, EventFileInfo{Name: path.Base(f.Key), TimestampMs: f.TimestampMs})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// EventFileHandler returns the records of one event file, optionally
// filtered by ?tag=.
func EventFileHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			writeError(w, http.StatusServiceUnavailable, "no data folder configured")
			return
		}
		name := chi.URLParam(r, "name")
		if !strings.HasSuffix(name, ".jsonl") || strings.ContainsAny(name, `/\`) {
			writeError(w, http.StatusBadRequest, "invalid event file name")
			return
		}

		records, bad, err := st.ReadEvents(r.Context(), store.EventsPrefix+name)
		if errors.Is(err, capture.ErrNotExist) {
			writeError(w, http.StatusNotFound, "event file not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, EventFileResponse{
			Name:    name,
			Records: filterTag(records, r.URL.Query().Get("tag")),
			Skipped: bad,
		})
	}
}

// CallsHandler returns the most recent captured calls across all event
// files, oldest first. ?tag= filters by tag and ?limit= bounds the result.
func CallsHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			writeError(w, http.StatusServiceUnavailable, "no data folder configured")
			return
		}

		limit := DefaultCallsLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}
		tag := r.URL.Query().Get("tag")

		files, err := st.ListEventFiles(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		// Walk newest to oldest until the limit is met.
		var (
			collected [][]capture.CallRecord
			total     int
			skipped   int
		)
		for i := len(files) - 1; i >= 0 && total < limit; i-- {
			records, bad, err := st.ReadEvents(r.Context(), files[i].Key)
			if errors.Is(err, capture.ErrNotExist) {
				continue
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			skipped += bad
			records = filterTag(records, tag)
			if over := total + len(records) - limit; over > 0 {
				records = records[over:]
			}
			collected = append(collected, records)
			total += len(records)
		}

		out := make([]capture.CallRecord, 0, total)
		for i := len(collected) - 1; i >= 0; i-- {
			out = append(out, collected[i]...)
		}
		writeJSON(w, http.StatusOK, CallsResponse{Tag: tag, Records: out, Skipped: skipped})
	}
}

func filterTag(records []capture.CallRecord, tag string) []capture.CallRecord {
	if records == nil {
		return []capture.CallRecord{}
	}
	if tag == "" {
		return records
	}
	out := records[:0:0]
	for _, rec := range records {
		if rec.Tag == tag {
			out = append(out, rec)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
