package portable

import (
	"encoding/binary"
	"unicode/utf8"
)

// Status reports the progress of a resumable reader.
type Status int

const (
	// Pending means more input is needed.
	Pending Status = iota
	// Done means the value is complete.
	Done
)

func (s Status) String() string {
	if s == Done {
		return "done"
	}

	return "pending"
}

// Upper bound on speculative preallocation for declared lengths and counts.
const maxPrealloc = 4096

// Minimum encoded size of a single section field: name length byte, tag and
// at least one payload byte.
const minFieldSize = 3

type decodeState struct {
	order    binary.ByteOrder
	maxDepth int
	// limit is the number of bytes the reader may consume, 0 when unbounded.
	limit    uint64
	consumed uint64
}

// cursor walks the bytes offered to one Resume call.
type cursor struct {
	buf []byte
	off int
	st  *decodeState
}

func (c *cursor) available() int {
	return len(c.buf) - c.off
}

func (c *cursor) take(n int) []byte {
	b := c.buf[c.off : c.off+n]
	c.off += n
	c.st.consumed += uint64(n)

	return b
}

func (c *cursor) readByte() byte {
	return c.take(1)[0]
}

// checkCount rejects a declared count of items, each at least minSize bytes
// long, that cannot fit in the remaining budget.
func (c *cursor) checkCount(n, minSize uint64) error {
	if c.st.limit == 0 || minSize == 0 {
		return nil
	}

	if n > (c.st.limit-c.st.consumed)/minSize {
		return ErrCountTooLarge
	}

	return nil
}

func capHint(n uint64) int {
	if n > maxPrealloc {
		return maxPrealloc
	}

	return int(n)
}

// machine is a resumable parser for one value. step consumes what it can from
// the cursor and reports whether the value is complete. A machine keeps its
// partial state between calls and must not be stepped again after it failed.
type machine interface {
	step(c *cursor) (bool, error)
	value() Entry
}

type rawSizeReader struct {
	buf   [8]byte
	have  int
	width int
	n     uint64
}

func (r *rawSizeReader) step(c *cursor) (bool, error) {
	if r.width == 0 {
		if c.available() == 0 {
			return false, nil
		}

		r.buf[0] = c.readByte()
		r.have = 1
		r.width = rawSizeWidth(c.st.order, r.buf[0])
	}

	k := min(r.width-r.have, c.available())
	copy(r.buf[r.have:], c.take(k))
	r.have += k

	if r.have < r.width {
		return false, nil
	}

	r.n = rawSizeValue(c.st.order, r.buf[:r.width])

	return true, nil
}

type scalarReader struct {
	tag  Tag
	buf  [8]byte
	have int
	v    Entry
}

func (r *scalarReader) step(c *cursor) (bool, error) {
	width := r.tag.width()

	k := min(width-r.have, c.available())
	copy(r.buf[r.have:], c.take(k))
	r.have += k

	if r.have < width {
		return false, nil
	}

	r.v = scalarFromBits(r.tag, readUint(c.st.order, r.buf[:width]))

	return true, nil
}

func (r *scalarReader) value() Entry { return r.v }

type blobState int

const (
	blobReadingLength blobState = iota
	blobReadingData
)

type blobReader struct {
	state blobState
	size  rawSizeReader
	data  []byte
}

func (r *blobReader) step(c *cursor) (bool, error) {
	if r.state == blobReadingLength {
		done, err := r.size.step(c)
		if err != nil || !done {
			return false, err
		}

		if err := c.checkCount(r.size.n, 1); err != nil {
			return false, err
		}

		r.data = make([]byte, 0, capHint(r.size.n))
		r.state = blobReadingData
	}

	need := r.size.n - uint64(len(r.data))
	k := c.available()

	if uint64(k) > need {
		k = int(need)
	}

	r.data = append(r.data, c.take(k)...)

	return uint64(len(r.data)) == r.size.n, nil
}

func (r *blobReader) value() Entry { return Blob(r.data) }

type nameState int

const (
	nameReadingLength nameState = iota
	nameReadingBytes
)

type nameReader struct {
	state nameState
	size  int
	buf   [MaxNameLen]byte
	have  int
	name  string
}

func (r *nameReader) step(c *cursor) (bool, error) {
	if r.state == nameReadingLength {
		if c.available() == 0 {
			return false, nil
		}

		r.size = int(c.readByte())
		r.state = nameReadingBytes
	}

	k := min(r.size-r.have, c.available())
	copy(r.buf[r.have:], c.take(k))
	r.have += k

	if r.have < r.size {
		return false, nil
	}

	if !utf8.Valid(r.buf[:r.size]) {
		return false, ErrInvalidName
	}

	r.name = string(r.buf[:r.size])

	return true, nil
}

// newValueReader returns the machine for an untagged payload of tag t found
// inside a section at the given depth.
func newValueReader(st *decodeState, t Tag, depth int) (machine, error) {
	switch t {
	case TagBlob:
		return &blobReader{}, nil
	case TagSection:
		return newSectionReader(st, depth+1)
	default:
		if t.width() == 0 {
			return nil, &UnknownTagError{Tag: byte(t)}
		}

		return &scalarReader{tag: t}, nil
	}
}

func minValueSize(t Tag) uint64 {
	if w := t.width(); w > 0 {
		return uint64(w)
	}

	// Blob length prefix or section field count.
	return 1
}

type entryState int

const (
	entryReadingTag entryState = iota
	entryReadingValue
)

type entryReader struct {
	state entryState
	depth int
	inner machine
}

func (r *entryReader) step(c *cursor) (bool, error) {
	if r.state == entryReadingTag {
		if c.available() == 0 {
			return false, nil
		}

		b := c.readByte()

		var err error

		if b&ArrayFlag != 0 {
			elem := Tag(b &^ ArrayFlag)
			if !elem.Valid() {
				return false, &UnknownTagError{Tag: b}
			}

			r.inner = &arrayReader{elem: elem, depth: r.depth}
		} else {
			t := Tag(b)
			if !t.Valid() {
				return false, &UnknownTagError{Tag: b}
			}

			if r.inner, err = newValueReader(c.st, t, r.depth); err != nil {
				return false, err
			}
		}

		r.state = entryReadingValue
	}

	return r.inner.step(c)
}

func (r *entryReader) value() Entry { return r.inner.value() }

type arrayState int

const (
	arrayReadingCount arrayState = iota
	arrayReadingElements
)

type arrayReader struct {
	state arrayState
	elem  Tag
	depth int
	count rawSizeReader
	array *Array
	cur   machine
}

func (r *arrayReader) step(c *cursor) (bool, error) {
	if r.state == arrayReadingCount {
		done, err := r.count.step(c)
		if err != nil || !done {
			return false, err
		}

		if err := c.checkCount(r.count.n, minValueSize(r.elem)); err != nil {
			return false, err
		}

		r.array = &Array{elem: r.elem, items: make([]Entry, 0, capHint(r.count.n))}
		r.state = arrayReadingElements
	}

	for uint64(len(r.array.items)) < r.count.n {
		if r.cur == nil {
			m, err := newValueReader(c.st, r.elem, r.depth)
			if err != nil {
				return false, err
			}

			r.cur = m
		}

		done, err := r.cur.step(c)
		if err != nil || !done {
			return false, err
		}

		r.array.items = append(r.array.items, r.cur.value())
		r.cur = nil
	}

	return true, nil
}

func (r *arrayReader) value() Entry { return r.array }

type sectionState int

const (
	sectionReadingCount sectionState = iota
	sectionReadingName
	sectionReadingEntry
)

type sectionReader struct {
	state   sectionState
	depth   int
	count   rawSizeReader
	read    uint64
	name    nameReader
	entry   entryReader
	section *Section
}

func newSectionReader(st *decodeState, depth int) (*sectionReader, error) {
	if depth > st.maxDepth {
		return nil, ErrMaxDepth
	}

	return &sectionReader{depth: depth}, nil
}

func (r *sectionReader) step(c *cursor) (bool, error) {
	for {
		switch r.state {
		case sectionReadingCount:
			done, err := r.count.step(c)
			if err != nil || !done {
				return false, err
			}

			if err := c.checkCount(r.count.n, minFieldSize); err != nil {
				return false, err
			}

			n := capHint(r.count.n)
			r.section = &Section{
				names:  make([]string, 0, n),
				values: make(map[string]Entry, n),
			}
			r.state = sectionReadingName
		case sectionReadingName:
			if r.read == r.count.n {
				return true, nil
			}

			done, err := r.name.step(c)
			if err != nil || !done {
				return false, err
			}

			r.entry = entryReader{depth: r.depth}
			r.state = sectionReadingEntry
		case sectionReadingEntry:
			done, err := r.entry.step(c)
			if err != nil || !done {
				return false, err
			}

			// Duplicate names overwrite the earlier value.
			r.section.Set(r.name.name, r.entry.value())
			r.read++
			r.name = nameReader{}
			r.state = sectionReadingName
		}
	}
}

func (r *sectionReader) value() Entry { return r.section }

type readerState int

const (
	readerReadingHeader readerState = iota
	readerReadingBody
	readerDone
)

// Reader decodes one payload (storage header followed by a section) from
// input offered in arbitrary chunks. Feeding the same bytes one at a time or
// all at once yields the same section.
//
// A Reader is not safe for concurrent use. After an error every further call
// returns the same error.
type Reader struct {
	st     decodeState
	state  readerState
	header [HeaderSize]byte
	have   int
	body   *sectionReader
	err    error
}

// NewReader returns a Reader using the codec's byte order and depth limit.
func (c *Codec) NewReader() *Reader {
	return &Reader{
		st: decodeState{
			order:    c.order,
			maxDepth: c.maxDepth,
		},
	}
}

// SetLimit bounds the total number of bytes the reader may consume, header
// included. A declared length that cannot fit is rejected immediately, and
// reaching the limit before the section is complete fails with
// ErrUnexpectedEnd. Zero means unbounded.
func (r *Reader) SetLimit(n uint64) {
	r.st.limit = n
}

// Consumed returns the number of bytes consumed so far.
func (r *Reader) Consumed() uint64 {
	return r.st.consumed
}

// Resume consumes bytes from p and returns how many were used. Once the
// section is complete it returns Done and leaves any further bytes unread.
func (r *Reader) Resume(p []byte) (int, Status, error) {
	if r.err != nil {
		return 0, Pending, r.err
	}

	if r.state == readerDone {
		return 0, Done, nil
	}

	if r.st.limit > 0 {
		if rem := r.st.limit - r.st.consumed; uint64(len(p)) > rem {
			p = p[:rem]
		}
	}

	c := &cursor{buf: p, st: &r.st}

	status, err := r.resume(c)
	if err != nil {
		r.err = err

		return c.off, Pending, err
	}

	if status == Pending && r.st.limit > 0 && r.st.consumed == r.st.limit {
		r.err = ErrUnexpectedEnd

		return c.off, Pending, r.err
	}

	return c.off, status, nil
}

func (r *Reader) resume(c *cursor) (Status, error) {
	if r.state == readerReadingHeader {
		k := min(HeaderSize-r.have, c.available())
		copy(r.header[r.have:], c.take(k))
		r.have += k

		if r.have < HeaderSize {
			return Pending, nil
		}

		if err := checkHeader(r.st.order, r.header[:]); err != nil {
			return Pending, err
		}

		body, err := newSectionReader(&r.st, 1)
		if err != nil {
			return Pending, err
		}

		r.body = body
		r.state = readerReadingBody
	}

	done, err := r.body.step(c)
	if err != nil || !done {
		return Pending, err
	}

	r.state = readerDone

	return Done, nil
}

// Section returns the decoded section once Resume reported Done.
func (r *Reader) Section() *Section {
	if r.state != readerDone {
		return nil
	}

	return r.body.section
}

// Reset prepares the reader for a new payload, keeping its options. The limit
// is cleared.
func (r *Reader) Reset() {
	*r = Reader{
		st: decodeState{
			order:    r.st.order,
			maxDepth: r.st.maxDepth,
		},
	}
}

func checkHeader(order binary.ByteOrder, h []byte) error {
	if got := order.Uint32(h[0:4]); got != SignatureA {
		return &InvalidHeaderError{Field: "signature_a", Got: got, Want: SignatureA}
	}

	if got := order.Uint32(h[4:8]); got != SignatureB {
		return &InvalidHeaderError{Field: "signature_b", Got: got, Want: SignatureB}
	}

	if h[8] != FormatVersion {
		return &InvalidHeaderError{Field: "version", Got: uint32(h[8]), Want: uint32(FormatVersion)}
	}

	return nil
}
