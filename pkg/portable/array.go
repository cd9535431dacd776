package portable

// Array is a homogeneous list of entries sharing one element tag. The tag is
// written once on the wire, not per element.
type Array struct {
	elem  Tag
	items []Entry
}

// NewArray returns an empty array of elem-typed entries. elem must be a
// scalar, blob or section tag.
func NewArray(elem Tag) *Array {
	return &Array{elem: elem}
}

// Tag implements Entry.
func (a *Array) Tag() Tag { return TagArray }

func (a *Array) sealed() {}

// Elem returns the element tag.
func (a *Array) Elem() Tag {
	return a.elem
}

// Len returns the number of elements.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}

	return len(a.items)
}

// Index returns the i-th element.
func (a *Array) Index(i int) Entry {
	return a.items[i]
}

// Entries returns the elements. The returned slice must not be modified.
func (a *Array) Entries() []Entry {
	return a.items
}

// Append adds elements, rejecting any whose tag differs from the element tag.
func (a *Array) Append(es ...Entry) error {
	for _, e := range es {
		if e == nil || e.Tag() != a.elem {
			return ErrArrayElementType
		}
	}

	a.items = append(a.items, es...)

	return nil
}

// Equal reports whether both arrays have the same element tag and elements.
func (a *Array) Equal(o *Array) bool {
	if a == nil || o == nil {
		return a.Len() == o.Len()
	}

	if a.elem != o.elem || len(a.items) != len(o.items) {
		return false
	}

	for i := range a.items {
		if !EntryEqual(a.items[i], o.items[i]) {
			return false
		}
	}

	return true
}

// BlobArray builds a blob array from byte slices.
func BlobArray(values [][]byte) *Array {
	a := NewArray(TagBlob)
	a.items = make([]Entry, len(values))

	for i, v := range values {
		a.items[i] = Blob(v)
	}

	return a
}

// SectionArray builds a section array.
func SectionArray(values []*Section) *Array {
	a := NewArray(TagSection)
	a.items = make([]Entry, len(values))

	for i, v := range values {
		a.items[i] = v
	}

	return a
}

// Blobs returns the elements of a blob array as byte slices.
func (a *Array) Blobs() ([][]byte, error) {
	if a.elem != TagBlob {
		return nil, ErrArrayElementType
	}

	out := make([][]byte, len(a.items))
	for i, e := range a.items {
		out[i] = []byte(e.(Blob))
	}

	return out, nil
}

// Sections returns the elements of a section array.
func (a *Array) Sections() ([]*Section, error) {
	if a.elem != TagSection {
		return nil, ErrArrayElementType
	}

	out := make([]*Section, len(a.items))
	for i, e := range a.items {
		out[i] = e.(*Section)
	}

	return out, nil
}
