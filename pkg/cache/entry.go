package cache

import (
	"bytes"
	"encoding/binary"
)

// entry mirrors one row of the on-disk slot table (spec §6). It is
// decoded/encoded on demand rather than kept live, since the mapped bytes
// are the single source of truth.
type entry struct {
	functionName string
	key          string
	length       uint32
	offset       uint32
	isUsed       bool
	checksum     uint32
}

func decodeCString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func encodeCString(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	n := copy(dst, s)
	_ = n
}

func (c *Cache) readEntryLocked(slot int) entry {
	base := entryOffset(slot)
	e := entry{}
	e.functionName = decodeCString(c.data[base+entOffFunctionName : base+entOffFunctionName+NameSize])
	e.key = decodeCString(c.data[base+entOffKey : base+entOffKey+KeySize])
	e.length = c.getU32(base + entOffLength)
	e.offset = c.getU32(base + entOffOffset)
	e.isUsed = c.data[base+entOffIsUsed] != 0
	e.checksum = c.getU32(base + entOffChecksum)
	return e
}

func (c *Cache) writeEntryLocked(slot int, e entry) {
	base := entryOffset(slot)
	encodeCString(c.data[base+entOffFunctionName:base+entOffFunctionName+NameSize], e.functionName)
	encodeCString(c.data[base+entOffKey:base+entOffKey+KeySize], e.key)
	c.setU32(base+entOffLength, e.length)
	c.setU32(base+entOffOffset, e.offset)
	if e.isUsed {
		c.data[base+entOffIsUsed] = 1
	} else {
		c.data[base+entOffIsUsed] = 0
	}
	c.setU32(base+entOffChecksum, e.checksum)
}

func (c *Cache) clearEntryLocked(slot int) {
	c.writeEntryLocked(slot, entry{})
}

func (c *Cache) getU32(off int) uint32 {
	return binary.LittleEndian.Uint32(c.data[off : off+4])
}

func (c *Cache) setU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(c.data[off:off+4], v)
}
