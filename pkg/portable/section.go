package portable

// Section is an ordered mapping of field names to entries. Field order is the
// order of first insertion and is preserved on the wire.
type Section struct {
	names  []string
	values map[string]Entry
}

// NewSection returns an empty section.
func NewSection() *Section {
	return &Section{values: make(map[string]Entry)}
}

// Tag implements Entry.
func (s *Section) Tag() Tag { return TagSection }

func (s *Section) sealed() {}

// Len returns the number of fields.
func (s *Section) Len() int {
	if s == nil {
		return 0
	}

	return len(s.names)
}

// Set stores e under name. Overwriting an existing field keeps its position.
// It returns the section to allow chaining.
func (s *Section) Set(name string, e Entry) *Section {
	if s.values == nil {
		s.values = make(map[string]Entry)
	}

	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}

	s.values[name] = e

	return s
}

// Get returns the entry stored under name.
func (s *Section) Get(name string) (Entry, bool) {
	if s == nil {
		return nil, false
	}

	e, ok := s.values[name]

	return e, ok
}

// Has reports whether name is present.
func (s *Section) Has(name string) bool {
	_, ok := s.Get(name)

	return ok
}

// Delete removes name from the section.
func (s *Section) Delete(name string) {
	if s == nil {
		return
	}

	if _, ok := s.values[name]; !ok {
		return
	}

	delete(s.values, name)

	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)

			break
		}
	}
}

// Names returns the field names in wire order.
func (s *Section) Names() []string {
	if s == nil {
		return nil
	}

	out := make([]string, len(s.names))
	copy(out, s.names)

	return out
}

// Range calls fn for every field in order until fn returns false.
func (s *Section) Range(fn func(name string, e Entry) bool) {
	if s == nil {
		return
	}

	for _, name := range s.names {
		if !fn(name, s.values[name]) {
			return
		}
	}
}

// Equal reports whether both sections hold the same fields, in the same
// order, with equal values.
func (s *Section) Equal(o *Section) bool {
	if s.Len() != o.Len() {
		return false
	}

	if s.Len() == 0 {
		return true
	}

	for i, name := range s.names {
		if o.names[i] != name {
			return false
		}

		if !EntryEqual(s.values[name], o.values[name]) {
			return false
		}
	}

	return true
}

func (s *Section) field(name string, want Tag) (Entry, error) {
	e, ok := s.Get(name)
	if !ok {
		return nil, &FieldError{Name: name, Want: want, Err: ErrFieldMissing}
	}

	if e.Tag() != want {
		return nil, &FieldError{Name: name, Want: want, Got: e.Tag(), Err: ErrFieldType}
	}

	return e, nil
}

// Int64 returns the int64 field name.
func (s *Section) Int64(name string) (int64, error) {
	e, err := s.field(name, TagInt64)
	if err != nil {
		return 0, err
	}

	return int64(e.(Int64)), nil
}

// Int32 returns the int32 field name.
func (s *Section) Int32(name string) (int32, error) {
	e, err := s.field(name, TagInt32)
	if err != nil {
		return 0, err
	}

	return int32(e.(Int32)), nil
}

// Uint64 returns the uint64 field name.
func (s *Section) Uint64(name string) (uint64, error) {
	e, err := s.field(name, TagUint64)
	if err != nil {
		return 0, err
	}

	return uint64(e.(Uint64)), nil
}

// Uint32 returns the uint32 field name.
func (s *Section) Uint32(name string) (uint32, error) {
	e, err := s.field(name, TagUint32)
	if err != nil {
		return 0, err
	}

	return uint32(e.(Uint32)), nil
}

// Uint16 returns the uint16 field name.
func (s *Section) Uint16(name string) (uint16, error) {
	e, err := s.field(name, TagUint16)
	if err != nil {
		return 0, err
	}

	return uint16(e.(Uint16)), nil
}

// Uint8 returns the uint8 field name.
func (s *Section) Uint8(name string) (uint8, error) {
	e, err := s.field(name, TagUint8)
	if err != nil {
		return 0, err
	}

	return uint8(e.(Uint8)), nil
}

// Float64 returns the float64 field name.
func (s *Section) Float64(name string) (float64, error) {
	e, err := s.field(name, TagFloat64)
	if err != nil {
		return 0, err
	}

	return float64(e.(Float64)), nil
}

// Bool returns the bool field name.
func (s *Section) Bool(name string) (bool, error) {
	e, err := s.field(name, TagBool)
	if err != nil {
		return false, err
	}

	return bool(e.(Bool)), nil
}

// Blob returns the blob field name.
func (s *Section) Blob(name string) ([]byte, error) {
	e, err := s.field(name, TagBlob)
	if err != nil {
		return nil, err
	}

	return []byte(e.(Blob)), nil
}

// Section returns the nested section stored under name.
func (s *Section) Section(name string) (*Section, error) {
	e, err := s.field(name, TagSection)
	if err != nil {
		return nil, err
	}

	return e.(*Section), nil
}

// Array returns the array stored under name, checking its element tag.
func (s *Section) Array(name string, elem Tag) (*Array, error) {
	e, err := s.field(name, TagArray)
	if err != nil {
		return nil, err
	}

	a := e.(*Array)
	if a.Elem() != elem {
		return nil, &FieldError{Name: name, Want: elem, Got: a.Elem(), Err: ErrFieldType}
	}

	return a, nil
}
