package portable

// Storable is implemented by every payload type carried by the protocol.
type Storable interface {
	// ToSection converts the value into its section form.
	ToSection() (*Section, error)
	// FromSection populates the value from a decoded section.
	FromSection(s *Section) error
}

// Encode converts v to a section and encodes it with the storage header.
func (c *Codec) Encode(v Storable) ([]byte, error) {
	s, err := v.ToSection()
	if err != nil {
		return nil, err
	}

	return c.Marshal(s)
}

// Decode decodes data and populates v from the resulting section.
func (c *Codec) Decode(data []byte, v Storable) error {
	s, err := c.Unmarshal(data)
	if err != nil {
		return err
	}

	return v.FromSection(s)
}

// Marshal encodes v with DefaultCodec.
func Marshal(v Storable) ([]byte, error) {
	return DefaultCodec.Encode(v)
}

// Unmarshal decodes data into v with DefaultCodec.
func Unmarshal(data []byte, v Storable) error {
	return DefaultCodec.Decode(data, v)
}
