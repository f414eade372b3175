package core

import (
	"sort"
	"time"
)

// Filters maps attribute names to required equality values.
type Filters map[string]any

// Keys returns the filter keys in sorted order.
func (f Filters) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Page selects a 1-based page of Size records.
type Page struct {
	Number int
	Size   int
}

func (p Page) Validate() error {
	if p.Number < 1 {
		return Invalid("page", "must be >= 1, got %d", p.Number)
	}
	if p.Size < 1 {
		return Invalid("page_size", "must be > 0, got %d", p.Size)
	}
	return nil
}

// Offset is the number of rows preceding the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageResult is the paginated envelope. Page is nil for unpaginated
// transaction listings.
type PageResult[T any] struct {
	Records      []T
	TotalRecords int
	TotalPages   int
	Page         *int
}

// TotalPages is ceil(total/size), 0 when there are no records.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paged builds an envelope for records on page p out of total.
func Paged[T any](records []T, total int, p Page) PageResult[T] {
	n := p.Number
	if records == nil {
		records = []T{}
	}
	return PageResult[T]{
		Records:      records,
		TotalRecords: total,
		TotalPages:   TotalPages(total, p.Size),
		Page:         &n,
	}
}

// Unpaged builds the envelope of an unpaginated listing. TotalPages is
// always 1, whatever the record count.
func Unpaged[T any](records []T) PageResult[T] {
	if records == nil {
		records = []T{}
	}
	return PageResult[T]{
		Records:      records,
		TotalRecords: len(records),
		TotalPages:   1,
	}
}

// TransactionQuery parameterizes the joined transaction listing. Zero Start
// or End leave that side unbounded.
type TransactionQuery struct {
	Filters  Filters
	Paginate bool
	Page     Page
	Start    time.Time
	End      time.Time
}
