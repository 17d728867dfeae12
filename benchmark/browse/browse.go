// Package browse implements the fixed-query workload: four chained read
// queries per iteration against a pre-existing, read-only catalog database,
// modelling one user browsing pass (listing, detail, relations, similar).
//
// The catalog schema is an external contract this harness only reads:
//
//	titles(id, catalog_no, name, original_name, release_date, cover_url, ...)
//	tags(id, name)                people(id, name, alias)
//	title_tags(title_id, tag_id)  title_people(title_id, person_id)
package browse

import (
	"database/sql"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"sqlitebench/benchmark"
	"sqlitebench/engine"
	"sqlitebench/util"
)

const DefaultIterations = 10

// Names of the four chained queries, in chain order.
var queryNames = []string{"listing", "detail", "relations", "similar"}

const listingQuery = `
	SELECT DISTINCT titles.catalog_no, titles.cover_url, titles.release_date
	FROM titles
	LEFT OUTER JOIN title_people ON title_people.title_id = titles.id
	LEFT OUTER JOIN people ON people.id = title_people.person_id
	LEFT OUTER JOIN title_tags ON title_tags.title_id = titles.id
	LEFT OUTER JOIN tags ON tags.id = title_tags.tag_id
	WHERE titles.catalog_no IS NOT NULL
	AND titles.catalog_no != ''
	AND titles.release_date IS NOT NULL
	AND titles.release_date <= ?
	AND titles.cover_url IS NOT NULL
	AND (lower(titles.catalog_no) LIKE lower(?)
		OR lower(titles.name) LIKE lower(?)
		OR lower(titles.original_name) LIKE lower(?)
		OR lower(people.name) LIKE lower(?)
		OR lower(people.alias) LIKE lower(?)
		OR lower(tags.name) LIKE lower(?))
	ORDER BY titles.release_date DESC
	LIMIT ? OFFSET ?
`

const detailQuery = `
	SELECT id, catalog_no, name, original_name, release_date, cover_url
	FROM titles
	WHERE catalog_no = ?
`

const relationsQuery = `
	SELECT tags.name, people.name
	FROM titles
	LEFT OUTER JOIN title_tags ON title_tags.title_id = titles.id
	LEFT OUTER JOIN tags ON tags.id = title_tags.tag_id
	LEFT OUTER JOIN title_people ON title_people.title_id = titles.id
	LEFT OUTER JOIN people ON people.id = title_people.person_id
	WHERE titles.catalog_no = ?
`

const similarQuery = `
	SELECT catalog_no, name, release_date
	FROM titles
	WHERE catalog_no != ?
	AND strftime('%Y', release_date) = (
		SELECT strftime('%Y', release_date) FROM titles WHERE catalog_no = ?
	)
	ORDER BY RANDOM()
	LIMIT 6
`

type Browse struct {
	EngineName  string `yaml:"engine"`
	CatalogPath string `yaml:"catalogPath"`
	Iterations  int    `yaml:"iterations"`
	Seed        int64  `yaml:"seed"`
	Search      string `yaml:"search"`

	db  *sql.DB
	rng *rand.Rand

	rowCounts map[string]int
	runCounts map[string]int
	latencies map[string][]float64

	// onChain, when set, observes each dependent-query dispatch: the chosen
	// identifier must belong to the same iteration's listing result set.
	onChain func(iteration int, chosen string, listing []string)
}

func New(configData []byte) *Browse {
	b := Browse{}
	util.CheckErr(yaml.Unmarshal(configData, &b))

	if b.EngineName == "" {
		b.EngineName = "sqlite3"
	}
	if b.CatalogPath == "" {
		b.CatalogPath = "catalog.db"
	}
	if b.Iterations == 0 {
		b.Iterations = DefaultIterations
	}
	if b.Seed == 0 {
		b.Seed = time.Now().UnixNano()
	}

	b.rng = rand.New(rand.NewSource(b.Seed))
	b.rowCounts = map[string]int{}
	b.runCounts = map[string]int{}
	b.latencies = map[string][]float64{}

	return &b
}

// Setup opens the catalog read-only. The open mode is a hard requirement:
// the harness must not be able to mutate the shared dataset.
func (b *Browse) Setup() error {
	db, err := engine.Open(b.EngineName, b.CatalogPath, engine.ModeReadOnly)
	if err != nil {
		return err
	}
	b.db = db
	return nil
}

func (b *Browse) Operations() []benchmark.Operation {
	return []benchmark.Operation{
		{
			Name:   "browse_workload",
			Label:  "Browse Workload",
			Detail: fmt.Sprintf("%d iterations", b.Iterations),
			Run:    b.run,
		},
	}
}

// run executes all iterations. Queries 2-4 only fire when the listing of the
// same iteration returned rows, and always use an identifier drawn from that
// listing; an identifier carried over from an earlier iteration would break
// the user-journey model.
func (b *Browse) run() (string, error) {
	for i := 0; i < b.Iterations; i++ {
		listing, err := b.timedListing(i)
		if err != nil {
			return "", err
		}
		if len(listing) == 0 {
			zlog.Debug().Int("iteration", i).Msg("listing empty, skipping chained queries")
			continue
		}

		chosen := listing[b.rng.Intn(len(listing))]
		if b.onChain != nil {
			b.onChain(i, chosen, listing)
		}

		for _, q := range []struct {
			name string
			run  func(string) (int, error)
		}{
			{"detail", b.detail},
			{"relations", b.relations},
			{"similar", b.similar},
		} {
			start := time.Now()
			rows, err := q.run(chosen)
			if err != nil {
				return "", err
			}
			b.record(q.name, rows, start)
		}

		zlog.Debug().Int("iteration", i).Str("chosen", chosen).
			Int("listing_rows", len(listing)).Msg("iteration done")
	}

	avgListing := 0
	if n := b.runCounts["listing"]; n > 0 {
		avgListing = b.rowCounts["listing"] / n
	}
	return fmt.Sprintf("Executed %d iterations, avg %d listing rows", b.Iterations, avgListing), nil
}

func (b *Browse) record(query string, rows int, start time.Time) {
	b.rowCounts[query] += rows
	b.runCounts[query]++
	b.latencies[query] = append(b.latencies[query], float64(time.Since(start).Microseconds())/1000)
}

// timedListing runs the listing query with a random as-of date and random
// pagination: limit in [50,199], offset in [0,4999]. Returns the identifiers
// of the page.
func (b *Browse) timedListing(iteration int) ([]string, error) {
	date := fmt.Sprintf("%04d-%02d-%02d",
		2020+b.rng.Intn(6), 1+b.rng.Intn(12), 1+b.rng.Intn(28))
	limit := 50 + b.rng.Intn(150)
	offset := b.rng.Intn(5000)
	pattern := "%" + b.Search + "%"

	start := time.Now()
	rows, err := b.db.Query(listingQuery,
		date, pattern, pattern, pattern, pattern, pattern, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing (iteration %d): %w", iteration, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var catalogNo, coverURL, releaseDate sql.NullString
		if err := rows.Scan(&catalogNo, &coverURL, &releaseDate); err != nil {
			return nil, fmt.Errorf("listing (iteration %d): scan: %w", iteration, err)
		}
		ids = append(ids, catalogNo.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing (iteration %d): %w", iteration, err)
	}

	b.record("listing", len(ids), start)
	return ids, nil
}

// detail fetches one title's full attribute set by identifier.
func (b *Browse) detail(catalogNo string) (int, error) {
	rows, err := b.db.Query(detailQuery, catalogNo)
	if err != nil {
		return 0, fmt.Errorf("detail %s: %w", catalogNo, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id int64
		var no, name, originalName, releaseDate, coverURL sql.NullString
		if err := rows.Scan(&id, &no, &name, &originalName, &releaseDate, &coverURL); err != nil {
			return 0, fmt.Errorf("detail %s: scan: %w", catalogNo, err)
		}
		count++
	}
	return count, rows.Err()
}

// relations fetches every tag and person linked to the title. Zero rows is a
// valid outcome for an unlinked title.
func (b *Browse) relations(catalogNo string) (int, error) {
	rows, err := b.db.Query(relationsQuery, catalogNo)
	if err != nil {
		return 0, fmt.Errorf("relations %s: %w", catalogNo, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var tag, person sql.NullString
		if err := rows.Scan(&tag, &person); err != nil {
			return 0, fmt.Errorf("relations %s: scan: %w", catalogNo, err)
		}
		count++
	}
	return count, rows.Err()
}

// similar fetches up to 6 other titles released the same year, in randomized
// order. The year comes from a correlated subquery on the chosen title.
func (b *Browse) similar(catalogNo string) (int, error) {
	rows, err := b.db.Query(similarQuery, catalogNo, catalogNo)
	if err != nil {
		return 0, fmt.Errorf("similar %s: %w", catalogNo, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var no, name, releaseDate sql.NullString
		if err := rows.Scan(&no, &name, &releaseDate); err != nil {
			return 0, fmt.Errorf("similar %s: scan: %w", catalogNo, err)
		}
		count++
	}
	return count, rows.Err()
}

func (b *Browse) Configs() map[string]string {
	return map[string]string{
		"engine":      b.EngineName,
		"catalogPath": b.CatalogPath,
		"iterations":  strconv.Itoa(b.Iterations),
		"seed":        strconv.FormatInt(b.Seed, 10),
	}
}

// Metrics reports, per query, the average row count across the iterations
// that ran it and the p95 latency in milliseconds. Informational only.
func (b *Browse) Metrics() map[string]string {
	metrics := map[string]string{}
	for _, q := range queryNames {
		n := b.runCounts[q]
		if n == 0 {
			continue
		}
		metrics[q+"AvgRows"] = strconv.Itoa(b.rowCounts[q] / n)
		metrics[q+"P95Ms"] = fmt.Sprintf("%.3f", util.Percentile(b.latencies[q], 95))
	}
	return metrics
}

func (b *Browse) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
