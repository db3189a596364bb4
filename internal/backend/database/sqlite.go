package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// columns maps selectable field names to their scan targets.
var columns = map[string]func(*Image) any{
	"id":              func(img *Image) any { return &img.ID },
	"image":           func(img *Image) any { return &img.Image },
	"fingerprint":     func(img *Image) any { return &img.Fingerprint },
	"color_signature": func(img *Image) any { return &img.ColorSignature },
	"object_labels":   func(img *Image) any { return &img.ObjectLabels },
	"created_at":      nil, // stored as unix nanoseconds, scanned separately
}

var allColumns = []string{"id", "image", "fingerprint", "color_signature", "object_labels", "created_at"}

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS images (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		image BLOB,
		fingerprint TEXT,
		color_signature TEXT,
		object_labels TEXT,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create images table: %w", err)
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) CreateImage(image *Image) (string, error) {
	if image == nil {
		return "", fmt.Errorf("image cannot be nil")
	}
	id := image.ID
	if id == "" {
		var err error
		id, err = generateID()
		if err != nil {
			return "", err
		}
	}
	createdAt := image.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(
		"INSERT INTO images (id, image, fingerprint, color_signature, object_labels, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, image.Image, image.Fingerprint, image.ColorSignature, image.ObjectLabels, createdAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to insert image: %w", err)
	}

	image.ID = id
	image.CreatedAt = createdAt
	return id, nil
}

func (s *SQLiteDatabase) GetImages(fields ...string) ([]*Image, error) {
	if len(fields) == 0 {
		fields = allColumns
	}
	for _, field := range fields {
		if _, ok := columns[field]; !ok {
			return nil, fmt.Errorf("unknown field: %s", field)
		}
	}

	query := fmt.Sprintf("SELECT %s FROM images ORDER BY seq ASC", strings.Join(fields, ", "))
	return s.queryImages(fields, query)
}

func (s *SQLiteDatabase) GetLatestImages(limit int) ([]*Image, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	fields := []string{"id", "created_at"}
	return s.queryImages(fields, "SELECT id, created_at FROM images ORDER BY seq DESC LIMIT ?", limit)
}

func (s *SQLiteDatabase) queryImages(fields []string, query string, args ...any) ([]*Image, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var images []*Image
	for rows.Next() {
		img, err := scanImage(rows, fields)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}
	return images, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(row scanner, fields []string) (*Image, error) {
	var img Image
	var createdAt sql.NullInt64
	// nullable text columns scan through NullString so a NULL becomes ""
	nullables := map[string]*sql.NullString{}
	dest := make([]any, len(fields))
	for i, field := range fields {
		switch field {
		case "created_at":
			dest[i] = &createdAt
		case "fingerprint", "color_signature", "object_labels":
			ns := &sql.NullString{}
			nullables[field] = ns
			dest[i] = ns
		default:
			dest[i] = columns[field](&img)
		}
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for field, ns := range nullables {
		*(columns[field](&img).(*string)) = ns.String
	}
	if createdAt.Valid {
		img.CreatedAt = time.Unix(0, createdAt.Int64)
	}
	return &img, nil
}

func (s *SQLiteDatabase) GetImageByID(id string) (*Image, error) {
	row := s.db.QueryRow(fmt.Sprintf("SELECT %s FROM images WHERE id = ?", strings.Join(allColumns, ", ")), id)
	img, err := scanImage(row, allColumns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image %s: %w", id, err)
	}
	return img, nil
}

func (s *SQLiteDatabase) DeleteImage(id string) error {
	_, err := s.db.Exec("DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete image %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteDatabase) CountImages() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM images").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}
