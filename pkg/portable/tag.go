package portable

// Tag identifies the type of an entry on the wire.
type Tag uint8

// Tags reserved by the format. TagArray is never written for typed arrays;
// those set ArrayFlag on the element tag instead.
const (
	TagInt64   Tag = 1
	TagInt32   Tag = 2
	TagInt16   Tag = 3
	TagInt8    Tag = 4
	TagUint64  Tag = 5
	TagUint32  Tag = 6
	TagUint16  Tag = 7
	TagUint8   Tag = 8
	TagFloat64 Tag = 9
	TagBlob    Tag = 10
	TagBool    Tag = 11
	TagSection Tag = 12
	TagArray   Tag = 13

	// ArrayFlag is OR'd into an element tag to mark an array entry.
	ArrayFlag byte = 0x80
)

var tagNames = map[Tag]string{
	TagInt64:   "int64",
	TagInt32:   "int32",
	TagInt16:   "int16",
	TagInt8:    "int8",
	TagUint64:  "uint64",
	TagUint32:  "uint32",
	TagUint16:  "uint16",
	TagUint8:   "uint8",
	TagFloat64: "float64",
	TagBlob:    "blob",
	TagBool:    "bool",
	TagSection: "section",
	TagArray:   "array",
}

// String returns the type name of the tag.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}

	return "unknown"
}

// Valid reports whether t may appear as an element tag, i.e. any reserved tag
// except TagArray.
func (t Tag) Valid() bool {
	return t >= TagInt64 && t <= TagSection
}

// width returns the fixed payload size of scalar tags, or 0 for blobs and sections.
func (t Tag) width() int {
	switch t {
	case TagInt64, TagUint64, TagFloat64:
		return 8
	case TagInt32, TagUint32:
		return 4
	case TagInt16, TagUint16:
		return 2
	case TagInt8, TagUint8, TagBool:
		return 1
	default:
		return 0
	}
}
