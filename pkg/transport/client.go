package transport

import "fmt"

// SendRequest performs the client-side send-request protocol (spec §4.1):
// acquire mutex, check for a busy slot, frame and deposit the message,
// record the correlation id, and post data_ready. The caller retains
// mutex across this call — the server releases it after consuming the
// message (§4.1's deliberate hand-off, so exactly one request is ever
// in flight).
func (r *Region) SendRequest(messageID, routeHash uint32, payload []byte) error {
	frame, err := Encode(messageID, routeHash, payload)
	if err != nil {
		return err
	}

	if err := r.mutex.Wait(); err != nil {
		return err
	}

	if r.getBool(offHasMessage) {
		_ = r.mutex.Post()
		return ErrBufferBusy
	}

	copy(r.data[offRequestBuf:offRequestBuf+MaxMessageSize], frame)
	r.setUint32(offMessageSize, uint32(len(frame)))
	r.setUint32(offCurrentMessageID, messageID)
	r.setBool(offHasMessage, true)

	if err := r.dataReady.Post(); err != nil {
		return err
	}

	return nil
}

// WaitResponse performs the client-side wait-response protocol (spec
// §4.1): block for response_ready, validate correlation, copy the payload
// into dest, and clear has_response. Returns the number of bytes copied.
func (r *Region) WaitResponse(expectedMessageID uint32, dest []byte) (int, error) {
	if err := r.responseReady.Wait(); err != nil {
		return 0, err
	}

	gotID := r.getUint32(offResponseMessageID)
	if gotID != expectedMessageID {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrCorrelationMismatch, gotID, expectedMessageID)
	}

	size := r.getUint32(offResponseSize)
	if len(dest) < int(size) {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, size, len(dest))
	}

	copy(dest[:size], r.data[offResponseBuf:offResponseBuf+int(size)])
	r.setBool(offHasResponse, false)

	return int(size), nil
}
