package catalog

import (
	"database/sql"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

// NormalizedAnalysisResult is the fixed per-file analysis record.
// Every field is a pointer so an absent value (a descriptor the
// extractor could not compute) is distinguishable from zero.
type NormalizedAnalysisResult struct {
	Centroid *float64
	Flatness *float64
	Slope    *float64
	Rolloff  *float64
	Spread   *float64
	Skewness *float64
	Kurtosis *float64
	Chroma   [12]float64 // chroma is always fully present when computed at all
	HaveChroma bool
}

// AggregatedAnalysisResult is the per-descriptor mean over a file set,
// treating absent values as skipped: neither numerator nor
// denominator. A field with zero contributing rows is 0.
type AggregatedAnalysisResult struct {
	Centroid, Flatness, Slope, Rolloff, Spread, Skewness, Kurtosis float64
	Chroma                                                         [12]float64
}

// DB wraps the catalog's SQL storage (files + their analysis rows).
type DB struct {
	sql *sql.DB
}

// Open opens (creating if absent) the SQLite-backed catalog database
// at path, using the pure-Go modernc.org/sqlite driver so the daemon
// carries no cgo dependency.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog db: %w", err)
	}
	db := &DB{sql: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS files (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	directory     TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	extension     TEXT NOT NULL,
	last_modified INTEGER NOT NULL,
	crc           TEXT
);

CREATE TABLE IF NOT EXISTS analysis (
	file_id    INTEGER PRIMARY KEY REFERENCES files(id),
	centroid   REAL,
	flatness   REAL,
	slope      REAL,
	rolloff    REAL,
	spread     REAL,
	skewness   REAL,
	kurtosis   REAL,
	chroma     BLOB,
	extra      BLOB
);
`
	_, err := db.sql.Exec(schema)
	return err
}

func (db *DB) Close() error { return db.sql.Close() }

// InsertFile inserts fd as a new row and returns its id. It does not
// look for an existing row for the same file, so inserting one file
// twice gives two rows. Callers that
// want the CRC persisted should call fd.CRC(root) first, since it is
// computed lazily and memoized on the FileDescription.
func (db *DB) InsertFile(fd *FileDescription) (int64, error) {
	res, execErr := db.sql.Exec(
		`INSERT INTO files (directory, file_name, extension, last_modified, crc) VALUES (?, ?, ?, ?, ?)`,
		fd.Directory, fd.FileName, fd.Extension, fd.LastModified, fd.crc,
	)
	if execErr != nil {
		return 0, fmt.Errorf("inserting file: %w", execErr)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	fd.ID = id
	return id, nil
}

// TotalCount returns the number of cataloged files, the "total" held
// fixed across a batcher run.
func (db *DB) TotalCount() (int, error) {
	var n int
	err := db.sql.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&n)
	return n, err
}

// UnanalyzedIDs returns up to limit file ids greater than afterID that
// have no analysis row yet, in ascending order.
func (db *DB) UnanalyzedIDs(afterID int64, limit int) ([]int64, error) {
	rows, err := db.sql.Query(
		`SELECT f.id FROM files f
		 LEFT JOIN analysis a ON a.file_id = f.id
		 WHERE f.id > ? AND a.file_id IS NULL
		 ORDER BY f.id ASC
		 LIMIT ?`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying unanalyzed files: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FileByID loads a FileDescription by id.
func (db *DB) FileByID(id int64) (*FileDescription, error) {
	fd := &FileDescription{}
	var crc sql.NullString
	err := db.sql.QueryRow(
		`SELECT id, directory, file_name, extension, last_modified, crc FROM files WHERE id = ?`, id,
	).Scan(&fd.ID, &fd.Directory, &fd.FileName, &fd.Extension, &fd.LastModified, &crc)
	if err != nil {
		return nil, fmt.Errorf("loading file id=%d: %w", id, err)
	}
	if crc.Valid {
		fd.crc = crc.String
		fd.have = true
	}
	return fd, nil
}

// BeginBatch opens a transaction for one batcher batch (the commit step
// 3).
func (db *DB) BeginBatch() (*sql.Tx, error) {
	return db.sql.Begin()
}

// InsertAnalysis inserts one successful analysis row within tx. extra
// carries the supplemented richer feature set (MFCC/tempo/instrument
// profile) as an opaque BLOB alongside the normalized fields.
func InsertAnalysis(tx *sql.Tx, fileID int64, r NormalizedAnalysisResult, extra []byte) error {
	chromaBlob := encodeChroma(r)
	_, err := tx.Exec(
		`INSERT INTO analysis (file_id, centroid, flatness, slope, rolloff, spread, skewness, kurtosis, chroma, extra)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID, nullable(r.Centroid), nullable(r.Flatness), nullable(r.Slope), nullable(r.Rolloff),
		nullable(r.Spread), nullable(r.Skewness), nullable(r.Kurtosis), chromaBlob, extra,
	)
	return err
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func encodeChroma(r NormalizedAnalysisResult) []byte {
	if !r.HaveChroma {
		return nil
	}
	buf := make([]byte, 12*8)
	for i, v := range r.Chroma {
		bits := math.Float64bits(v)
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(bits >> (8 * b))
		}
	}
	return buf
}

// AggregateMeans computes the arithmetic mean over fileIDs for each
// descriptor, skipping absent values per file (the same skip-absent
// aggregation rule). A descriptor with zero contributing rows is 0.
func (db *DB) AggregateMeans(fileIDs []int64) (AggregatedAnalysisResult, error) {
	var out AggregatedAnalysisResult
	if len(fileIDs) == 0 {
		return out, nil
	}

	placeholders := make([]byte, 0, len(fileIDs)*2)
	args := make([]interface{}, len(fileIDs))
	for i, id := range fileIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	query := fmt.Sprintf(
		`SELECT centroid, flatness, slope, rolloff, spread, skewness, kurtosis, chroma
		 FROM analysis WHERE file_id IN (%s)`, placeholders)

	rows, err := db.sql.Query(query, args...)
	if err != nil {
		return out, fmt.Errorf("aggregating analysis: %w", err)
	}
	defer rows.Close()

	sums := make([]float64, 7)
	counts := make([]int, 7)
	chromaSums := [12]float64{}
	chromaCounts := 0

	for rows.Next() {
		var vals [7]sql.NullFloat64
		var chromaBlob []byte
		if err := rows.Scan(&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6], &chromaBlob); err != nil {
			return out, err
		}
		for i, v := range vals {
			if v.Valid {
				sums[i] += v.Float64
				counts[i]++
			}
		}
		if len(chromaBlob) == 12*8 {
			chromaCounts++
			for i := 0; i < 12; i++ {
				var bits uint64
				for b := 0; b < 8; b++ {
					bits |= uint64(chromaBlob[i*8+b]) << (8 * b)
				}
				chromaSums[i] += math.Float64frombits(bits)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return out, err
	}

	fields := []*float64{&out.Centroid, &out.Flatness, &out.Slope, &out.Rolloff, &out.Spread, &out.Skewness, &out.Kurtosis}
	for i, f := range fields {
		if counts[i] > 0 {
			*f = sums[i] / float64(counts[i])
		}
	}
	if chromaCounts > 0 {
		for i := range out.Chroma {
			out.Chroma[i] = chromaSums[i] / float64(chromaCounts)
		}
	}
	return out, nil
}
