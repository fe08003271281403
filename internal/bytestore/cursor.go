package bytestore

// Cursor is a sequential view over a Store: each read/write advances an
// internal offset, the way codecs expect to consume an entry's byte layout
// (key_size, key_bytes, meta_data_bytes, value_size, padding, value_bytes)
// without every call site tracking offsets by hand.
type Cursor struct {
	store Store
	base  int64
	pos   int64
}

// NewCursor returns a Cursor starting at base within store.
func NewCursor(store Store, base int64) *Cursor {
	return &Cursor{store: store, base: base, pos: base}
}

// Offset returns the cursor's current absolute offset into the store.
func (c *Cursor) Offset() int64 { return c.pos }

// Seek repositions the cursor to an absolute offset.
func (c *Cursor) Seek(off int64) { c.pos = off }

// Advance moves the cursor forward by n bytes without reading or writing,
// used to skip padding inserted for value alignment.
func (c *Cursor) Advance(n int) { c.pos += int64(n) }

func (c *Cursor) ReadUint8() (uint8, error) {
	v, err := c.store.ReadUint8(c.pos)
	if err != nil {
		return 0, err
	}
	c.pos++
	return v, nil
}

func (c *Cursor) ReadUint32() (uint32, error) {
	v, err := c.store.ReadUint32(c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 4
	return v, nil
}

func (c *Cursor) ReadUint64() (uint64, error) {
	v, err := c.store.ReadUint64(c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 8
	return v, nil
}

func (c *Cursor) ReadFloat64() (float64, error) {
	v, err := c.store.ReadFloat64(c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 8
	return v, nil
}

func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	v, err := c.store.ReadBytes(c.pos, n)
	if err != nil {
		return nil, err
	}
	c.pos += int64(n)
	return v, nil
}

func (c *Cursor) WriteUint8(v uint8) error {
	if err := c.store.WriteUint8(c.pos, v); err != nil {
		return err
	}
	c.pos++
	return nil
}

func (c *Cursor) WriteUint32(v uint32) error {
	if err := c.store.WriteUint32(c.pos, v); err != nil {
		return err
	}
	c.pos += 4
	return nil
}

func (c *Cursor) WriteUint64(v uint64) error {
	if err := c.store.WriteUint64(c.pos, v); err != nil {
		return err
	}
	c.pos += 8
	return nil
}

func (c *Cursor) WriteFloat64(v float64) error {
	if err := c.store.WriteFloat64(c.pos, v); err != nil {
		return err
	}
	c.pos += 8
	return nil
}

func (c *Cursor) WriteBytes(p []byte) error {
	if err := c.store.WriteBytes(c.pos, p); err != nil {
		return err
	}
	c.pos += int64(len(p))
	return nil
}
