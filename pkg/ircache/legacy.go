package ircache

import "encoding/binary"

// encodeLegacyGraph re-serializes a cached IR graph's opaque bytes into
// the bit-packed framing `function/get_ir` used to retain before the
// system settled on the plain length-prefixed byte blob of
// function/get_ir_graph (SPEC_FULL.md §6A, grounded on
// src/m_cache/m_graph_serializer.h's packed-varint graph encoding). The
// graph bytes themselves are still opaque to this package — only the
// outer size prefix is varint-packed rather than a fixed 4-byte field.
func encodeLegacyGraph(graph []byte) []byte {
	var sizeBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(sizeBuf[:], uint64(len(graph)))

	out := make([]byte, n+len(graph))
	copy(out, sizeBuf[:n])
	copy(out[n:], graph)
	return out
}

// decodeLegacyGraph reverses encodeLegacyGraph.
func decodeLegacyGraph(payload []byte) ([]byte, error) {
	size, n := binary.Uvarint(payload)
	if n <= 0 {
		return nil, errLegacyFrame
	}
	rest := payload[n:]
	if uint64(len(rest)) < size {
		return nil, errLegacyFrame
	}
	graph := make([]byte, size)
	copy(graph, rest[:size])
	return graph, nil
}
