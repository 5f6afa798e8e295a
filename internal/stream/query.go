package stream

// query holds the resolved options of one reader call.
type query struct {
	n       int
	peek    bool
	ignore  bool
	strictN bool
	step    int
	onlyNew bool
	startLE bool
	stopGE  bool
}

// QueryOption adjusts a single reader call. Options that are not given fall
// back to the reader's ReaderDefaults.
type QueryOption func(*query)

// WithN sets how many consecutive items Read returns. Values < 1 mean 1.
func WithN(n int) QueryOption {
	return func(q *query) { q.n = n }
}

// WithPeek leaves the cursor unchanged when true.
func WithPeek(peek bool) QueryOption {
	return func(q *query) { q.peek = peek }
}

// WithIgnoreNoItemFound turns ErrNotFound into the null result.
func WithIgnoreNoItemFound(ignore bool) QueryOption {
	return func(q *query) { q.ignore = ignore }
}

// WithStrictN makes Read fail with ErrInsufficientItems when fewer than n
// items are available.
func WithStrictN(strict bool) QueryOption {
	return func(q *query) { q.strictN = strict }
}

// WithStep keeps every step-th item of a Range, starting from the first.
func WithStep(step int) QueryOption {
	return func(q *query) { q.step = step }
}

// OnlyNewItems restricts Range and Tail to items after the cursor.
func OnlyNewItems(only bool) QueryOption {
	return func(q *query) { q.onlyNew = only }
}

// StartLE rounds a Range start down to the largest buffered key <= start.
func StartLE(round bool) QueryOption {
	return func(q *query) { q.startLE = round }
}

// StopGE rounds a Range stop up to the smallest buffered key >= stop.
func StopGE(round bool) QueryOption {
	return func(q *query) { q.stopGE = round }
}

func (d ReaderDefaults) resolve(opts []QueryOption) query {
	q := query{
		n:       d.ReadSize,
		peek:    d.Peek,
		ignore:  d.IgnoreNoItemFound,
		strictN: d.StrictN,
		step:    1,
	}
	for _, opt := range opts {
		opt(&q)
	}
	if q.n < 1 {
		q.n = 1
	}
	if q.step < 1 {
		q.step = 1
	}
	return q
}
