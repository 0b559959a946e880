package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"qrscan/internal/classify"
	"qrscan/internal/dto"
	"qrscan/internal/export"
	"qrscan/internal/logger"
	"qrscan/internal/models"
	"qrscan/internal/repository"
	"qrscan/internal/services"
)

const (
	defaultPageSize = 24
	maxPageSize     = 200
)

// pageWindow clamps the requested page and page size and returns the row offset.
func pageWindow(page, limit int) (int, int, int) {
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if maxPage := math.MaxInt32 / limit; page > maxPage {
		page = maxPage
	}
	return page, limit, (page - 1) * limit
}

// parseDate accepts a date ("2006-01-02") or a full RFC 3339 timestamp.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GetResultsHandler returns one page of scan history, newest first.
func GetResultsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, limit, offset := pageWindow(atoiDefault(q.Get("page"), 1), atoiDefault(q.Get("limit"), defaultPageSize))

		typ := q.Get("type")
		if typ != "" && !classify.Type(typ).Valid() {
			http.Error(w, "Unknown result type", http.StatusBadRequest)
			return
		}

		filter := &models.ScanFilter{
			Type:     typ,
			DeviceID: q.Get("device"),
			Since:    parseDate(q.Get("since")),
			Until:    parseDate(q.Get("until")),
			Limit:    limit,
			Offset:   offset,
		}

		repo := manager.GetRepository()
		records, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying scan history: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		total, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting scan history: %v", err)
			total = len(records)
		}

		writeJSON(w, http.StatusOK, dto.ResultsPage{
			Results:     records,
			Total:       total,
			TotalPages:  (total + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// lookupResult writes the error response itself when it returns nil.
func lookupResult(manager *services.Manager, logger *logger.Logger, w http.ResponseWriter, r *http.Request) *models.ScanRecord {
	id, ok := resultID(r)
	if !ok {
		http.Error(w, "Invalid result id", http.StatusBadRequest)
		return nil
	}

	rec, err := manager.GetRepository().GetByID(id)
	if err != nil {
		logger.Error("Error loading result %d: %v", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	if rec == nil {
		http.Error(w, "Result not found", http.StatusNotFound)
		return nil
	}
	return rec
}

func GetResultHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec := lookupResult(manager, logger, w, r); rec != nil {
			writeJSON(w, http.StatusOK, rec)
		}
	}
}

// DownloadResultHandler serves a result as its JSON export document.
func DownloadResultHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := lookupResult(manager, logger, w, r)
		if rec == nil {
			return
		}

		res := rec.Result()
		data, err := export.Marshal(res)
		if err != nil {
			logger.Error("Error exporting result %d: %v", rec.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(res.Timestamp)))
		w.Write(data)
	}
}

func DeleteResultHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := resultID(r)
		if !ok {
			http.Error(w, "Invalid result id", http.StatusBadRequest)
			return
		}

		err := manager.GetRepository().Delete(id)
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Result not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("Error deleting result %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted result %d", id)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
	}
}

func ClearResultsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.GetRepository().DeleteAll(); err != nil {
			logger.Error("Error clearing scan history: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Scan history cleared")
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

func GetStatsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := manager.GetRepository().GetStats()
		if err != nil {
			logger.Error("Error getting scan stats: %v", err)
			http.Error(w, "Failed to retrieve stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// FlushExportsHandler writes buffered results to the export directory now.
func FlushExportsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paths, err := manager.GetBufferService().FlushResults()
		if err != nil {
			logger.Error("Error flushing exports: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if paths == nil {
			paths = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"written": paths})
	}
}
