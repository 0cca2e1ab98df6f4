package document

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Segment is one step of a path from the document root to a node: either
// an object key or an array index.
type Segment struct {
	Key   string
	Index int
	IsKey bool
}

// KeySegment creates a path segment for an object key.
func KeySegment(key string) Segment {
	return Segment{Key: key, IsKey: true}
}

// IndexSegment creates a path segment for an array index.
func IndexSegment(i int) Segment {
	return Segment{Index: i}
}

// Path is the sequence of segments from the root to a node, e.g.
// user.name or orders[2].date.
type Path []Segment

// String renders the path in dotted form with bracketed indices.
func (p Path) String() string {
	var b strings.Builder
	for _, seg := range p {
		if seg.IsKey {
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.Key)
		} else {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// LeafFunc is called for every scalar leaf during a walk. It returns the
// value to place at that position in the copy; returning the input value
// unchanged leaves the leaf as-is. A non-nil error aborts the walk.
type LeafFunc func(path Path, leaf Value) (Value, error)

// CycleError reports a document containing a container that is its own
// ancestor. Serialized formats cannot produce this, but programmatically
// built trees can.
type CycleError struct {
	Path Path
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("unsupported structure: cycle detected at %q", e.Path.String())
}

// Walk performs a depth-first, structure-preserving traversal of doc and
// returns a new tree. Containers are copied (the input is never mutated),
// key and index order follow the input exactly, and every scalar leaf is
// passed to visit along with its path.
//
// Containers reachable through themselves fail fast with CycleError
// rather than recursing forever.
func Walk(doc Value, visit LeafFunc) (Value, error) {
	w := &walker{
		visit:    visit,
		visiting: make(map[uintptr]struct{}),
	}
	return w.walk(nil, doc)
}

type walker struct {
	visit    LeafFunc
	visiting map[uintptr]struct{}
}

func (w *walker) walk(path Path, v Value) (Value, error) {
	switch val := v.(type) {
	case *Object:
		id := reflect.ValueOf(val).Pointer()
		if err := w.enter(id, path); err != nil {
			return nil, err
		}
		defer delete(w.visiting, id)

		out := NewObject()
		for _, key := range val.Keys() {
			field, _ := val.Get(key)
			copied, err := w.walk(append(path, KeySegment(key)), field)
			if err != nil {
				return nil, err
			}
			out.Set(key, copied)
		}
		return out, nil

	case Array:
		// A zero-length slice has no backing array to alias, so only
		// non-empty arrays can participate in a cycle.
		var id uintptr
		if len(val) > 0 {
			id = reflect.ValueOf(val).Pointer()
			if err := w.enter(id, path); err != nil {
				return nil, err
			}
			defer delete(w.visiting, id)
		}

		out := make(Array, len(val))
		for i, elem := range val {
			copied, err := w.walk(append(path, IndexSegment(i)), elem)
			if err != nil {
				return nil, err
			}
			out[i] = copied
		}
		return out, nil

	case nil:
		return nil, fmt.Errorf("nil Value at %q: use Null{}", path.String())

	default:
		return w.visit(path, v)
	}
}

func (w *walker) enter(id uintptr, path Path) error {
	if _, seen := w.visiting[id]; seen {
		// Copy the path: it aliases the caller's append buffer.
		return &CycleError{Path: append(Path(nil), path...)}
	}
	w.visiting[id] = struct{}{}
	return nil
}
