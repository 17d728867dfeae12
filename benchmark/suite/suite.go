// Package suite implements the six-operation synthetic benchmark: batch
// insert, single inserts, simple select, complex select, batch update and
// batch delete against a users table created fresh for every run.
package suite

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"sqlitebench/benchmark"
	"sqlitebench/engine"
	"sqlitebench/util"
)

// Record counts of the reference workload. A run that changes them is still
// valid, just not comparable with other harnesses.
const (
	DefaultBatchInsertRecords  = 10_000
	DefaultSingleInsertRecords = 1_000
	DefaultBatchUpdateRecords  = 5_000
	DefaultBatchDeleteRecords  = 5_000
)

type Suite struct {
	EngineName          string `yaml:"engine"`
	DatabasePath        string `yaml:"databasePath"`
	BatchInsertRecords  int    `yaml:"batchInsertRecords"`
	SingleInsertRecords int    `yaml:"singleInsertRecords"`
	BatchUpdateRecords  int    `yaml:"batchUpdateRecords"`
	BatchDeleteRecords  int    `yaml:"batchDeleteRecords"`

	db *sql.DB
}

func New(configData []byte) *Suite {
	s := Suite{}
	util.CheckErr(yaml.Unmarshal(configData, &s))

	if s.EngineName == "" {
		s.EngineName = "sqlite3"
	}
	if s.DatabasePath == "" {
		s.DatabasePath = "benchmark.db"
	}
	if s.BatchInsertRecords == 0 {
		s.BatchInsertRecords = DefaultBatchInsertRecords
	}
	if s.SingleInsertRecords == 0 {
		s.SingleInsertRecords = DefaultSingleInsertRecords
	}
	if s.BatchUpdateRecords == 0 {
		s.BatchUpdateRecords = DefaultBatchUpdateRecords
	}
	if s.BatchDeleteRecords == 0 {
		s.BatchDeleteRecords = DefaultBatchDeleteRecords
	}

	return &s
}

// Setup opens a fresh database file and creates the users table. The id
// column is the rowid, so insertion order defines the key values the update
// and delete operations address.
func (s *Suite) Setup() error {
	db, err := engine.Open(s.EngineName, s.DatabasePath, engine.ModeWrite)
	if err != nil {
		return err
	}
	s.db = db

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			age INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (s *Suite) Operations() []benchmark.Operation {
	return []benchmark.Operation{
		{
			Name:   "batch_insert",
			Label:  "Batch Insert",
			Detail: humanize.Comma(int64(s.BatchInsertRecords)) + " records",
			Run:    func() (string, error) { return "", s.batchInsert(s.BatchInsertRecords) },
		},
		{
			Name:   "single_inserts",
			Label:  "Single Inserts",
			Detail: humanize.Comma(int64(s.SingleInsertRecords)) + " records",
			Run:    func() (string, error) { return "", s.singleInserts(s.SingleInsertRecords) },
		},
		{
			Name:   "simple_select",
			Label:  "Simple Select",
			Detail: "age > 30",
			Run:    s.simpleSelect,
		},
		{
			Name:   "complex_select",
			Label:  "Complex Select",
			Detail: "aggregation",
			Run:    s.complexSelect,
		},
		{
			Name:   "batch_update",
			Label:  "Batch Update",
			Detail: humanize.Comma(int64(s.BatchUpdateRecords)) + " records",
			Run:    func() (string, error) { return "", s.batchUpdate(s.BatchUpdateRecords) },
		},
		{
			Name:   "batch_delete",
			Label:  "Batch Delete",
			Detail: humanize.Comma(int64(s.BatchDeleteRecords)) + " records",
			Run:    func() (string, error) { return "", s.batchDelete(s.BatchDeleteRecords) },
		},
	}
}

// batchInsert issues count inserts inside one explicit transaction.
// Row i carries name User{i}, email user{i}@example.com, age 20+(i%50).
func (s *Suite) batchInsert(count int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("batch insert: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO users (name, email, age) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("batch insert: prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < count; i++ {
		_, err = stmt.Exec(
			fmt.Sprintf("User%d", i),
			fmt.Sprintf("user%d@example.com", i),
			20+(i%50),
		)
		if err != nil {
			return fmt.Errorf("batch insert: row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("batch insert: commit: %w", err)
	}
	return nil
}

// singleInserts issues count inserts with no explicit transaction, so each
// statement auto-commits. Row i carries name SingleUser{i}, email
// single{i}@example.com, age 25+(i%40).
func (s *Suite) singleInserts(count int) error {
	stmt, err := s.db.Prepare("INSERT INTO users (name, email, age) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("single inserts: prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < count; i++ {
		_, err = stmt.Exec(
			fmt.Sprintf("SingleUser%d", i),
			fmt.Sprintf("single%d@example.com", i),
			25+(i%40),
		)
		if err != nil {
			return fmt.Errorf("single inserts: row %d: %w", i, err)
		}
	}
	return nil
}

// simpleSelect scans every row with age > 30 and reports how many it found.
// The count is informational; it is not asserted.
func (s *Suite) simpleSelect() (string, error) {
	rows, err := s.db.Query("SELECT * FROM users WHERE age > ?", 30)
	if err != nil {
		return "", fmt.Errorf("simple select: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id, age int
		var name, email string
		if err := rows.Scan(&id, &name, &email, &age); err != nil {
			return "", fmt.Errorf("simple select: scan: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("simple select: %w", err)
	}

	return fmt.Sprintf("Found %d records", count), nil
}

// complexSelect groups rows by age for ages 25..50 inclusive, computing count
// and average per group, ordered by count descending, capped at 10 groups.
func (s *Suite) complexSelect() (string, error) {
	rows, err := s.db.Query(`
		SELECT age, COUNT(*) as count, AVG(age) as avg_age
		FROM users
		WHERE age BETWEEN ? AND ?
		GROUP BY age
		ORDER BY count DESC
		LIMIT 10
	`, 25, 50)
	if err != nil {
		return "", fmt.Errorf("complex select: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var age, cnt int
		var avgAge float64
		if err := rows.Scan(&age, &cnt, &avgAge); err != nil {
			return "", fmt.Errorf("complex select: scan: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("complex select: %w", err)
	}

	return fmt.Sprintf("Aggregated %d groups", count), nil
}

// batchUpdate sets age = 30+(i%30) on the row with id i+1, for i in
// [0,count), inside one transaction. Row count never changes.
func (s *Suite) batchUpdate(count int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("batch update: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("UPDATE users SET age = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("batch update: prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < count; i++ {
		if _, err := stmt.Exec(30+(i%30), i+1); err != nil {
			return fmt.Errorf("batch update: row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("batch update: commit: %w", err)
	}
	return nil
}

// batchDelete removes every row with id <= count in a single statement
// wrapped in a transaction. Running it twice deletes nothing the second time.
func (s *Suite) batchDelete(count int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("batch delete: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM users WHERE id <= ?", count); err != nil {
		return fmt.Errorf("batch delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("batch delete: commit: %w", err)
	}
	return nil
}

func (s *Suite) Configs() map[string]string {
	return map[string]string{
		"engine":              s.EngineName,
		"databasePath":        s.DatabasePath,
		"batchInsertRecords":  strconv.Itoa(s.BatchInsertRecords),
		"singleInsertRecords": strconv.Itoa(s.SingleInsertRecords),
		"batchUpdateRecords":  strconv.Itoa(s.BatchUpdateRecords),
		"batchDeleteRecords":  strconv.Itoa(s.BatchDeleteRecords),
	}
}

// Metrics reports the row count left behind by the operations.
func (s *Suite) Metrics() map[string]string {
	var rows int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&rows); err != nil {
		return map[string]string{}
	}
	return map[string]string{"finalRows": strconv.Itoa(rows)}
}

func (s *Suite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
