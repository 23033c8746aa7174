package ircache

import (
	"encoding/binary"
	"fmt"
)

// AddIRGraphRequest is the wire payload for function/add_ir_graph (spec
// §6): {function_code_hash[256], serialized_graph_size:u32, bytes[...]}.
type AddIRGraphRequest struct {
	FunctionCodeHash string
	Graph            []byte
}

// EncodeAddIRGraphRequest frames an AddIRGraphRequest for transport.
func EncodeAddIRGraphRequest(req AddIRGraphRequest) []byte {
	buf := make([]byte, functionHashSize+4+len(req.Graph))
	putCString(buf[:functionHashSize], req.FunctionCodeHash)
	binary.LittleEndian.PutUint32(buf[functionHashSize:functionHashSize+4], uint32(len(req.Graph)))
	copy(buf[functionHashSize+4:], req.Graph)
	return buf
}

// DecodeAddIRGraphRequest parses a function/add_ir_graph payload.
func DecodeAddIRGraphRequest(payload []byte) (AddIRGraphRequest, error) {
	if len(payload) < functionHashSize+4 {
		return AddIRGraphRequest{}, fmt.Errorf("ircache: add_ir_graph payload too short: %d bytes", len(payload))
	}
	size := binary.LittleEndian.Uint32(payload[functionHashSize : functionHashSize+4])
	rest := payload[functionHashSize+4:]
	if uint32(len(rest)) < size {
		return AddIRGraphRequest{}, fmt.Errorf("ircache: add_ir_graph declares %d bytes, has %d", size, len(rest))
	}
	graph := make([]byte, size)
	copy(graph, rest[:size])
	return AddIRGraphRequest{
		FunctionCodeHash: getCString(payload[:functionHashSize]),
		Graph:            graph,
	}, nil
}

// GetIRGraphRequest is the wire payload for function/get_ir_graph (spec
// §6): {function_code_hash[256]}.
type GetIRGraphRequest struct {
	FunctionCodeHash string
}

// EncodeGetIRGraphRequest frames a GetIRGraphRequest for transport.
func EncodeGetIRGraphRequest(req GetIRGraphRequest) []byte {
	buf := make([]byte, functionHashSize)
	putCString(buf, req.FunctionCodeHash)
	return buf
}

// DecodeGetIRGraphRequest parses a function/get_ir_graph request payload.
func DecodeGetIRGraphRequest(payload []byte) (GetIRGraphRequest, error) {
	if len(payload) < functionHashSize {
		return GetIRGraphRequest{}, fmt.Errorf("ircache: get_ir_graph payload too short: %d bytes", len(payload))
	}
	return GetIRGraphRequest{FunctionCodeHash: getCString(payload[:functionHashSize])}, nil
}

// GetIRGraphResponse is the wire payload for function/get_ir_graph's
// response (spec §6): {success:bool, serialized_graph_size:u32,
// error_message[128], bytes[]}.
type GetIRGraphResponse struct {
	Success         bool
	SerializedGraph []byte
	ErrorMessage    string
}

// EncodeGetIRGraphResponse frames a GetIRGraphResponse for transport.
func EncodeGetIRGraphResponse(resp GetIRGraphResponse) []byte {
	buf := make([]byte, 1+4+errorMessageSize+len(resp.SerializedGraph))
	if resp.Success {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(resp.SerializedGraph)))
	putCString(buf[5:5+errorMessageSize], resp.ErrorMessage)
	copy(buf[5+errorMessageSize:], resp.SerializedGraph)
	return buf
}

// DecodeGetIRGraphResponse parses a function/get_ir_graph response
// payload.
func DecodeGetIRGraphResponse(payload []byte) (GetIRGraphResponse, error) {
	if len(payload) < 1+4+errorMessageSize {
		return GetIRGraphResponse{}, fmt.Errorf("ircache: get_ir_graph response too short: %d bytes", len(payload))
	}
	size := binary.LittleEndian.Uint32(payload[1:5])
	rest := payload[5+errorMessageSize:]
	if uint32(len(rest)) < size {
		return GetIRGraphResponse{}, fmt.Errorf("ircache: get_ir_graph response declares %d bytes, has %d", size, len(rest))
	}
	graph := make([]byte, size)
	copy(graph, rest[:size])
	return GetIRGraphResponse{
		Success:         payload[0] != 0,
		SerializedGraph: graph,
		ErrorMessage:    getCString(payload[5 : 5+errorMessageSize]),
	}, nil
}

func putCString(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, s)
}

func getCString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
