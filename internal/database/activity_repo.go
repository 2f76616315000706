package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vineethbhatalevoor/artvista/internal/tracker"
)

// ActivityRepo is the durable backend of the usage tracker: one row per
// viewed item plus a singleton meta row for the aggregate and the
// last-viewed marker. It implements tracker.Store.
type ActivityRepo struct {
	db *DB
}

func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

func (r *ActivityRepo) Load() (tracker.Snapshot, error) {
	snapshot := tracker.EmptySnapshot()

	var totalSeconds int64
	var lastItem sql.NullString
	var lastTs sql.NullTime
	err := r.db.conn.QueryRow(
		`SELECT total_seconds, last_viewed_item, last_viewed_ts FROM activity_meta WHERE id = 1`,
	).Scan(&totalSeconds, &lastItem, &lastTs)
	if err != nil && err != sql.ErrNoRows {
		return tracker.EmptySnapshot(), fmt.Errorf("failed to load activity meta: %w", err)
	}
	if err == nil {
		snapshot.TotalSeconds = totalSeconds
		if lastItem.Valid {
			ts := time.Time{}
			if lastTs.Valid {
				ts = lastTs.Time
			}
			snapshot.LastViewed = &tracker.LastViewed{Item: lastItem.String, Ts: ts}
		}
	}

	rows, err := r.db.conn.Query(
		`SELECT item, total_seconds, last_ts, views FROM activity_records`,
	)
	if err != nil {
		return tracker.EmptySnapshot(), fmt.Errorf("failed to load activity records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item string
		var record tracker.ActivityRecord
		if err := rows.Scan(&item, &record.TotalSeconds, &record.LastTs, &record.Views); err != nil {
			return tracker.EmptySnapshot(), fmt.Errorf("failed to scan activity record: %w", err)
		}
		snapshot.Activities[item] = record
	}
	if err := rows.Err(); err != nil {
		return tracker.EmptySnapshot(), fmt.Errorf("failed to read activity records: %w", err)
	}

	return snapshot, nil
}

// Save replaces the persisted state with the snapshot. The state is a
// handful of rows, so rewrite-in-transaction keeps both backends simple.
func (r *ActivityRepo) Save(snapshot tracker.Snapshot) error {
	tx, err := r.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM activity_records`); err != nil {
		return fmt.Errorf("failed to clear activity records: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM activity_meta`); err != nil {
		return fmt.Errorf("failed to clear activity meta: %w", err)
	}

	insertRecord := `INSERT INTO activity_records (item, total_seconds, last_ts, views) VALUES (?, ?, ?, ?)`
	insertMeta := `INSERT INTO activity_meta (id, total_seconds, last_viewed_item, last_viewed_ts) VALUES (1, ?, ?, ?)`
	if r.db.dbType == "postgres" {
		insertRecord = `INSERT INTO activity_records (item, total_seconds, last_ts, views) VALUES ($1, $2, $3, $4)`
		insertMeta = `INSERT INTO activity_meta (id, total_seconds, last_viewed_item, last_viewed_ts) VALUES (1, $1, $2, $3)`
	}

	for item, record := range snapshot.Activities {
		if _, err := tx.Exec(insertRecord, item, record.TotalSeconds, record.LastTs, record.Views); err != nil {
			return fmt.Errorf("failed to insert activity record: %w", err)
		}
	}

	var lastItem, lastTs interface{}
	if snapshot.LastViewed != nil {
		lastItem = snapshot.LastViewed.Item
		lastTs = snapshot.LastViewed.Ts
	}
	if _, err := tx.Exec(insertMeta, snapshot.TotalSeconds, lastItem, lastTs); err != nil {
		return fmt.Errorf("failed to insert activity meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activity snapshot: %w", err)
	}
	return nil
}

func (r *ActivityRepo) Reset() error {
	if _, err := r.db.conn.Exec(`DELETE FROM activity_records`); err != nil {
		return fmt.Errorf("failed to reset activity records: %w", err)
	}
	if _, err := r.db.conn.Exec(`DELETE FROM activity_meta`); err != nil {
		return fmt.Errorf("failed to reset activity meta: %w", err)
	}
	return nil
}
