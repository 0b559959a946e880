package sqlite

import (
	"database/sql"
	"fmt"

	"qrscan/internal/models"
	"qrscan/internal/repository"
)

var _ repository.ScanRepository = (*ScanRepository)(nil)

// ScanRepository implements repository.ScanRepository for SQLite.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new SQLite scan repository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const insertScan = `
	INSERT INTO scan_results (session_id, device_id, content, type, formatted_content, scanned_at)
	VALUES (?, ?, ?, ?, ?, ?)
`

const selectScan = `
	SELECT id, session_id, device_id, content, type, formatted_content, scanned_at
	FROM scan_results
`

// Insert adds a new scan record to the database.
func (r *ScanRepository) Insert(rec *models.ScanRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertScan, insertArgs(rec)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

// InsertBatch adds multiple records in a single transaction.
func (r *ScanRepository) InsertBatch(records []models.ScanRecord) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertScan)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		if _, err := stmt.Exec(insertArgs(&records[i])...); err != nil {
			return fmt.Errorf("failed to insert scan: %w", err)
		}
	}

	return tx.Commit()
}

func insertArgs(rec *models.ScanRecord) []interface{} {
	formatted := sql.NullString{String: rec.FormattedContent, Valid: rec.FormattedContent != ""}
	return []interface{}{rec.SessionID, rec.DeviceID, rec.Content, rec.Type, formatted, rec.ScannedAt.UTC()}
}

// GetByID retrieves a record by its ID. A missing record is (nil, nil).
func (r *ScanRepository) GetByID(id int64) (*models.ScanRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rec, err := scanRecord(r.db.Conn().QueryRow(selectScan+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.ScanRecord, error) {
	var rec models.ScanRecord
	var formatted sql.NullString
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.DeviceID, &rec.Content, &rec.Type, &formatted, &rec.ScannedAt); err != nil {
		return nil, err
	}
	rec.FormattedContent = formatted.String
	return &rec, nil
}

func whereClause(filter *models.ScanFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.Type != "" {
		where += " AND type = ?"
		args = append(args, filter.Type)
	}

	if filter.DeviceID != "" {
		where += " AND device_id = ?"
		args = append(args, filter.DeviceID)
	}

	if !filter.Since.IsZero() {
		where += " AND scanned_at >= ?"
		args = append(args, filter.Since.UTC())
	}

	if !filter.Until.IsZero() {
		where += " AND scanned_at <= ?"
		args = append(args, filter.Until.UTC())
	}

	return where, args
}

// GetAll retrieves records based on filter criteria, newest first.
func (r *ScanRepository) GetAll(filter *models.ScanFilter) ([]models.ScanRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := selectScan + where + " ORDER BY scanned_at DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	records := []models.ScanRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// GetTotalCount returns the number of records matching the filter.
func (r *ScanRepository) GetTotalCount(filter *models.ScanFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow("SELECT COUNT(*) FROM scan_results"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return count, nil
}

// GetStats returns totals per type and per device.
func (r *ScanRepository) GetStats() (*models.ScanStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.ScanStats{
		PerType:   make(map[string]int),
		PerDevice: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM scan_results`).Scan(&stats.Total); err != nil {
		return nil, err
	}

	if err := r.groupCount(`SELECT type, COUNT(*) FROM scan_results GROUP BY type`, stats.PerType); err != nil {
		return nil, err
	}
	if err := r.groupCount(`SELECT device_id, COUNT(*) FROM scan_results GROUP BY device_id`, stats.PerDevice); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *ScanRepository) groupCount(query string, into map[string]int) error {
	rows, err := r.db.Conn().Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

// Delete removes a record by its ID.
func (r *ScanRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM scan_results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteAll removes the whole history.
func (r *ScanRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM scan_results`); err != nil {
		return fmt.Errorf("failed to delete scans: %w", err)
	}
	return nil
}
