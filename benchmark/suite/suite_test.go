package suite

import (
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlitebench/runner"
)

// newTestSuite builds a suite on the pure-Go driver in a temp dir so the
// tests do not depend on cgo.
func newTestSuite(t *testing.T) *Suite {
	t.Helper()

	s := New([]byte("engine: sqlite\ndatabasePath: " + filepath.Join(t.TempDir(), "bench.db")))
	require.NoError(t, s.Setup())
	t.Cleanup(func() { s.Close() })

	return s
}

func (s *Suite) rowCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n))
	return n
}

func TestNewDefaults(t *testing.T) {
	s := New([]byte(""))

	assert.Equal(t, "sqlite3", s.EngineName)
	assert.Equal(t, "benchmark.db", s.DatabasePath)
	assert.Equal(t, DefaultBatchInsertRecords, s.BatchInsertRecords)
	assert.Equal(t, DefaultSingleInsertRecords, s.SingleInsertRecords)
	assert.Equal(t, DefaultBatchUpdateRecords, s.BatchUpdateRecords)
	assert.Equal(t, DefaultBatchDeleteRecords, s.BatchDeleteRecords)
}

func TestNewOverrides(t *testing.T) {
	s := New([]byte("engine: sqlite\nbatchInsertRecords: 250\nsingleInsertRecords: 10"))

	assert.Equal(t, "sqlite", s.EngineName)
	assert.Equal(t, 250, s.BatchInsertRecords)
	assert.Equal(t, 10, s.SingleInsertRecords)
}

func TestBatchInsertCount(t *testing.T) {
	for _, n := range []int{1, 10, 250} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			s := newTestSuite(t)
			require.NoError(t, s.batchInsert(n))
			assert.Equal(t, n, s.rowCount(t))
		})
	}
}

func TestBatchInsertAgeFormula(t *testing.T) {
	s := newTestSuite(t)
	require.NoError(t, s.batchInsert(120))

	rows, err := s.db.Query("SELECT id, name, email, age FROM users ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	i := 0
	for rows.Next() {
		var id, age int
		var name, email string
		require.NoError(t, rows.Scan(&id, &name, &email, &age))
		assert.Equal(t, i+1, id)
		assert.Equal(t, fmt.Sprintf("User%d", i), name)
		assert.Equal(t, fmt.Sprintf("user%d@example.com", i), email)
		assert.Equal(t, 20+(i%50), age)
		i++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 120, i)
}

func TestSingleInsertsAgeFormula(t *testing.T) {
	s := newTestSuite(t)
	require.NoError(t, s.singleInserts(100))

	rows, err := s.db.Query("SELECT id, age FROM users ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	i := 0
	for rows.Next() {
		var id, age int
		require.NoError(t, rows.Scan(&id, &age))
		assert.Equal(t, 25+(i%40), age, "row %d", i)
		i++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 100, i)
}

func TestBatchUpdateOnlyTouchesTargetedAges(t *testing.T) {
	s := newTestSuite(t)
	require.NoError(t, s.batchInsert(100))
	require.NoError(t, s.batchUpdate(50))

	assert.Equal(t, 100, s.rowCount(t), "update must not change row count")

	rows, err := s.db.Query("SELECT id, age FROM users ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	for rows.Next() {
		var id, age int
		require.NoError(t, rows.Scan(&id, &age))
		if id <= 50 {
			// loop index i = id-1
			assert.Equal(t, 30+((id-1)%30), age, "id %d", id)
		} else {
			assert.Equal(t, 20+((id-1)%50), age, "id %d", id)
		}
	}
	require.NoError(t, rows.Err())
}

func TestBatchDeleteIsIdempotent(t *testing.T) {
	s := newTestSuite(t)
	require.NoError(t, s.batchInsert(100))

	require.NoError(t, s.batchDelete(60))
	assert.Equal(t, 40, s.rowCount(t))

	require.NoError(t, s.batchDelete(60))
	assert.Equal(t, 40, s.rowCount(t), "second delete must affect 0 rows")
}

func TestBatchDeleteMoreThanExisting(t *testing.T) {
	s := newTestSuite(t)
	require.NoError(t, s.batchInsert(30))

	require.NoError(t, s.batchDelete(60))
	assert.Equal(t, 0, s.rowCount(t))
}

func TestComplexSelectGroupsSortedByCountDesc(t *testing.T) {
	s := newTestSuite(t)
	// Skewed distribution: age 30 x5, age 40 x3, age 45 x1, plus ages outside
	// the 25..50 window that must not appear.
	for age, n := range map[int]int{30: 5, 40: 3, 45: 1, 20: 4, 60: 4} {
		for i := 0; i < n; i++ {
			_, err := s.db.Exec("INSERT INTO users (name, email, age) VALUES ('x', 'x@example.com', ?)", age)
			require.NoError(t, err)
		}
	}

	note, err := s.complexSelect()
	require.NoError(t, err)
	assert.Equal(t, "Aggregated 3 groups", note)

	rows, err := s.db.Query(`
		SELECT age, COUNT(*) as count FROM users
		WHERE age BETWEEN 25 AND 50
		GROUP BY age ORDER BY count DESC LIMIT 10`)
	require.NoError(t, err)
	defer rows.Close()

	prev := int(^uint(0) >> 1)
	var ages []int
	for rows.Next() {
		var age, count int
		require.NoError(t, rows.Scan(&age, &count))
		assert.LessOrEqual(t, count, prev, "groups must be sorted by count desc")
		prev = count
		ages = append(ages, age)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{30, 40, 45}, ages)
}

func TestSimpleSelectNote(t *testing.T) {
	s := newTestSuite(t)
	require.NoError(t, s.batchInsert(50)) // ages 20..69, 39 rows above 30

	note, err := s.simpleSelect()
	require.NoError(t, err)
	assert.Equal(t, "Found 39 records", note)
}

func TestEndToEndRowAccounting(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size run")
	}

	s := newTestSuite(t)
	results, err := runner.New(io.Discard).Run(s.Operations())
	require.NoError(t, err)
	require.Len(t, results, 6)

	// 10000 + 1000 inserted, 5000 deleted.
	assert.Equal(t, 6000, s.rowCount(t))
	assert.Equal(t, "6000", s.Metrics()["finalRows"])

	// Batch-inserted rows past the delete horizon keep their insert-time ages:
	// the update only touched ids <= 5000, all of which are gone.
	rows, err := s.db.Query("SELECT id, age FROM users WHERE id BETWEEN 5001 AND 10000 ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	n := 0
	for rows.Next() {
		var id, age int
		require.NoError(t, rows.Scan(&id, &age))
		assert.Equal(t, 20+((id-1)%50), age, "id %d", id)
		n++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 5000, n)

	// Single-inserted rows (ids 10001..11000) keep their own formula.
	rows2, err := s.db.Query("SELECT id, age FROM users WHERE id > 10000 ORDER BY id")
	require.NoError(t, err)
	defer rows2.Close()

	i := 0
	for rows2.Next() {
		var id, age int
		require.NoError(t, rows2.Scan(&id, &age))
		assert.Equal(t, 25+(i%40), age, "id %d", id)
		i++
	}
	require.NoError(t, rows2.Err())
	assert.Equal(t, 1000, i)
}

func TestOperationsOrder(t *testing.T) {
	s := New([]byte(""))

	var names []string
	for _, op := range s.Operations() {
		names = append(names, op.Name)
	}
	assert.Equal(t, []string{
		"batch_insert", "single_inserts", "simple_select",
		"complex_select", "batch_update", "batch_delete",
	}, names)
}
