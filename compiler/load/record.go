package load

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/syssam/strata"
)

// Record is an object of an entity loaded from a description file. One
// record holds the properties of its entity and of all its ancestors.
type Record struct {
	entity string

	mu     sync.Mutex
	values map[string]any
	refs   map[string]**Record
	lists  map[string]*strata.List[*Record]
}

// NewRecord returns an empty record of the named entity.
func NewRecord(entity string) *Record {
	return &Record{
		entity: entity,
		values: make(map[string]any),
		refs:   make(map[string]**Record),
		lists:  make(map[string]*strata.List[*Record]),
	}
}

// Entity returns the name of the most derived entity of the record.
func (r *Record) Entity() string { return r.entity }

// Get returns the value of a field. NULL columns are reported as nil.
func (r *Record) Get(field string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[field]
	return v, ok
}

// Set assigns the value of a field.
func (r *Record) Set(field string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[field] = v
}

// Fields returns the names of the assigned fields, sorted.
func (r *Record) Fields() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.values))
}

// Ref returns the target of a to-one edge, nil if there is none.
func (r *Record) Ref(edge string) *Record {
	return *r.ref(edge)
}

// List returns the list of a to-many edge.
func (r *Record) List(edge string) *strata.List[*Record] {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lists[edge]
	if !ok {
		l = &strata.List[*Record]{}
		r.lists[edge] = l
	}
	return l
}

func (r *Record) ref(edge string) **Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.refs[edge]
	if !ok {
		p = new(*Record)
		r.refs[edge] = p
	}
	return p
}

// String returns the entity name followed by the fields.
func (r *Record) String() string {
	names := r.Fields()
	parts := make([]string, len(names))
	for i, n := range names {
		v, _ := r.Get(n)
		parts[i] = fmt.Sprintf("%s=%v", n, v)
	}
	return r.entity + "{" + strings.Join(parts, " ") + "}"
}
