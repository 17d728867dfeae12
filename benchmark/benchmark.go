package benchmark

// Operation is one timed unit of work. Run executes every statement the
// operation consists of (the runner measures around the whole call) and may
// return an informational note, e.g. a result-set size.
type Operation struct {
	// Name identifies the operation in logs and results (snake_case, stable).
	Name string
	// Label is the human-readable name used in progress lines and the report.
	Label string
	// Detail is appended to the progress line in parentheses, e.g. a record
	// count or a WHERE clause summary. May be empty.
	Detail string
	// Run performs the operation. The returned note, when non-empty, is
	// printed as an informational sub-line under the progress line.
	Run func() (note string, err error)
}

// Benchmark produces an ordered list of operations against a database.
// Each implementation deserializes its own parameters from the raw config
// file contents.
type Benchmark interface {
	// Called once before the operations run, to open handles and create
	// schema; excluded from all timings
	Setup() error
	// Returns the operations in execution order, which is also report order
	Operations() []Operation
	// Returns the benchmark-specific configurations
	Configs() map[string]string
	// Returns the benchmark-specific metrics, valid after the operations ran
	Metrics() map[string]string
	// Called once at the end of the run, to close any resources held
	Close() error
}
