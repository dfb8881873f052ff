// Package store is the SQLite persistence collaborator: it accepts wizard
// payloads, keeps uploaded file bodies alongside the listing, and serves
// stored listings back for edit-mode hydration.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/listingform/internal/types"
	"github.com/matthewbaird/listingform/internal/wizard"
)

// ErrNotFound is returned when a listing or media key does not exist.
var ErrNotFound = errors.New("not found")

// MediaPrefix is the URL path under which stored file bodies are served.
const MediaPrefix = "/v1/media/"

var schema = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS listings (
		id            TEXT PRIMARY KEY,
		fields        TEXT NOT NULL,
		amenities     TEXT NOT NULL,
		nearby_places TEXT NOT NULL,
		geohash       TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS listing_images (
		key           TEXT PRIMARY KEY,
		listing_id    TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		url           TEXT NOT NULL,
		caption       TEXT NOT NULL DEFAULT '',
		position      INTEGER NOT NULL,
		is_cover      INTEGER NOT NULL,
		is_floor_plan INTEGER NOT NULL,
		content_type  TEXT NOT NULL DEFAULT '',
		body          BLOB
	)`,
	`CREATE TABLE IF NOT EXISTS listing_documents (
		key          TEXT PRIMARY KEY,
		listing_id   TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		url          TEXT NOT NULL UNIQUE,
		name         TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size         INTEGER NOT NULL,
		position     INTEGER NOT NULL,
		body         BLOB
	)`,
	`CREATE INDEX IF NOT EXISTS listing_images_listing ON listing_images(listing_id, position)`,
	`CREATE INDEX IF NOT EXISTS listing_documents_listing ON listing_documents(listing_id, position)`,
}

// SQLite stores listings in a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}
	return &SQLite{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Submit creates or updates a listing from a wizard payload. Images and
// documents without a URL are paired, in order, with the payload's file
// bodies and stored under a fresh key.
func (s *SQLite) Submit(ctx context.Context, p *wizard.Payload) (wizard.Receipt, error) {
	fields, err := json.Marshal(p.Fields)
	if err != nil {
		return wizard.Receipt{}, fmt.Errorf("encoding fields: %w", err)
	}
	amenities, err := json.Marshal(nonNil(p.Amenities))
	if err != nil {
		return wizard.Receipt{}, fmt.Errorf("encoding amenities: %w", err)
	}
	places := make([]types.NearbyPlace, 0, len(p.NearbyPlaces))
	for _, np := range p.NearbyPlaces {
		places = append(places, types.NearbyPlace{Name: np.Name, Distance: np.Distance, Category: np.Category})
	}
	nearby, err := json.Marshal(places)
	if err != nil {
		return wizard.Receipt{}, fmt.Errorf("encoding nearby places: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wizard.Receipt{}, err
	}
	defer tx.Rollback()

	now := s.now()
	rec := wizard.Receipt{PropertyID: p.PropertyID}
	if p.Update() {
		res, err := tx.ExecContext(ctx,
			`UPDATE listings SET fields=?, amenities=?, nearby_places=?, geohash=?, updated_at=? WHERE id=?`,
			string(fields), string(amenities), string(nearby), p.Geohash, now, p.PropertyID)
		if err != nil {
			return wizard.Receipt{}, fmt.Errorf("updating listing: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return wizard.Receipt{}, fmt.Errorf("listing %s: %w", p.PropertyID, ErrNotFound)
		}
	} else {
		rec.PropertyID = uuid.New().String()
		rec.Created = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO listings(id, fields, amenities, nearby_places, geohash, created_at, updated_at) VALUES(?,?,?,?,?,?,?)`,
			rec.PropertyID, string(fields), string(amenities), string(nearby), p.Geohash, now, now); err != nil {
			return wizard.Receipt{}, fmt.Errorf("inserting listing: %w", err)
		}
	}

	if err := writeImages(ctx, tx, rec.PropertyID, p); err != nil {
		return wizard.Receipt{}, err
	}
	if err := writeDocuments(ctx, tx, rec.PropertyID, p); err != nil {
		return wizard.Receipt{}, err
	}
	if err := tx.Commit(); err != nil {
		return wizard.Receipt{}, fmt.Errorf("committing listing: %w", err)
	}
	return rec, nil
}

func writeImages(ctx context.Context, tx *sql.Tx, listingID string, p *wizard.Payload) error {
	keep := make(map[string]bool)
	next := 0
	for _, img := range p.Images {
		if img.URL != "" && img.Key != "" {
			keep[img.Key] = true
			if _, err := tx.ExecContext(ctx,
				`UPDATE listing_images SET caption=?, position=?, is_cover=?, is_floor_plan=? WHERE key=? AND listing_id=?`,
				img.Caption, img.Order, img.IsCover, img.IsFloorPlan, img.Key, listingID); err != nil {
				return fmt.Errorf("updating image %s: %w", img.Key, err)
			}
			continue
		}
		if next >= len(p.ImageFiles) {
			return fmt.Errorf("image %d has neither a url nor a file", img.Order)
		}
		f := p.ImageFiles[next]
		next++
		key := uuid.New().String()
		keep[key] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO listing_images(key, listing_id, url, caption, position, is_cover, is_floor_plan, content_type, body) VALUES(?,?,?,?,?,?,?,?,?)`,
			key, listingID, MediaPrefix+key, img.Caption, img.Order, img.IsCover, img.IsFloorPlan, f.Type, f.Content); err != nil {
			return fmt.Errorf("inserting image %s: %w", f.Name, err)
		}
	}
	return prune(ctx, tx, "listing_images", listingID, keep)
}

func writeDocuments(ctx context.Context, tx *sql.Tx, listingID string, p *wizard.Payload) error {
	keep := make(map[string]bool)
	next := 0
	for i, d := range p.Documents {
		if d.URL != "" {
			var key string
			err := tx.QueryRowContext(ctx,
				`SELECT key FROM listing_documents WHERE url=? AND listing_id=?`, d.URL, listingID).Scan(&key)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("looking up document %s: %w", d.URL, err)
			}
			keep[key] = true
			if _, err := tx.ExecContext(ctx, `UPDATE listing_documents SET position=? WHERE key=?`, i, key); err != nil {
				return fmt.Errorf("updating document %s: %w", key, err)
			}
			continue
		}
		if next >= len(p.DocumentFiles) {
			return fmt.Errorf("document %q has neither a url nor a file", d.Name)
		}
		f := p.DocumentFiles[next]
		next++
		key := uuid.New().String()
		keep[key] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO listing_documents(key, listing_id, url, name, content_type, size, position, body) VALUES(?,?,?,?,?,?,?,?)`,
			key, listingID, MediaPrefix+key, d.Name, d.Type, d.Size, i, f.Content); err != nil {
			return fmt.Errorf("inserting document %s: %w", d.Name, err)
		}
	}
	return prune(ctx, tx, "listing_documents", listingID, keep)
}

// prune deletes the rows of table owned by listingID whose key is not in keep.
func prune(ctx context.Context, tx *sql.Tx, table, listingID string, keep map[string]bool) error {
	rows, err := tx.QueryContext(ctx, `SELECT key FROM `+table+` WHERE listing_id=?`, listingID)
	if err != nil {
		return fmt.Errorf("listing %s keys: %w", table, err)
	}
	var stale []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return err
		}
		if !keep[key] {
			stale = append(stale, key)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, key := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE key=?`, key); err != nil {
			return fmt.Errorf("pruning %s %s: %w", table, key, err)
		}
	}
	return nil
}

// Get loads a stored listing.
func (s *SQLite) Get(ctx context.Context, id string) (types.PropertyRecord, error) {
	rec := types.PropertyRecord{ID: id}
	var fields, amenities, nearby string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields, amenities, nearby_places, created_at, updated_at FROM listings WHERE id=?`, id).
		Scan(&fields, &amenities, &nearby, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("loading listing %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return rec, fmt.Errorf("decoding fields: %w", err)
	}
	if err := json.Unmarshal([]byte(amenities), &rec.Amenities); err != nil {
		return rec, fmt.Errorf("decoding amenities: %w", err)
	}
	if err := json.Unmarshal([]byte(nearby), &rec.NearbyPlaces); err != nil {
		return rec, fmt.Errorf("decoding nearby places: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT url, key, caption, position, is_cover, is_floor_plan FROM listing_images WHERE listing_id=? ORDER BY position`, id)
	if err != nil {
		return rec, fmt.Errorf("loading images: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var img types.PersistedImage
		if err := rows.Scan(&img.URL, &img.Key, &img.Caption, &img.Order, &img.IsCover, &img.IsFloorPlan); err != nil {
			return rec, err
		}
		rec.Images = append(rec.Images, img)
	}
	if err := rows.Err(); err != nil {
		return rec, err
	}

	docs, err := s.db.QueryContext(ctx,
		`SELECT url, name, content_type, size FROM listing_documents WHERE listing_id=? ORDER BY position`, id)
	if err != nil {
		return rec, fmt.Errorf("loading documents: %w", err)
	}
	defer docs.Close()
	for docs.Next() {
		var d types.PersistedDocument
		if err := docs.Scan(&d.URL, &d.Name, &d.Type, &d.Size); err != nil {
			return rec, err
		}
		rec.Documents = append(rec.Documents, d)
	}
	return rec, docs.Err()
}

// Media returns a stored file body by key, looking in images first.
func (s *SQLite) Media(ctx context.Context, key string) (string, []byte, error) {
	for _, q := range []string{
		`SELECT content_type, body FROM listing_images WHERE key=?`,
		`SELECT content_type, body FROM listing_documents WHERE key=?`,
	} {
		var ct string
		var body []byte
		err := s.db.QueryRowContext(ctx, q, key).Scan(&ct, &body)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("loading media %s: %w", key, err)
		}
		if body == nil {
			break
		}
		return ct, body, nil
	}
	return "", nil, fmt.Errorf("media %s: %w", key, ErrNotFound)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
