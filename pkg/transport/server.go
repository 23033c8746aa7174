package transport

import "fmt"

// WaitForData blocks until a client has posted a request (or the shutdown
// signal handler posts data_ready once to unblock a waiting server, spec
// §4.3/§6).
func (r *Region) WaitForData() error {
	return r.dataReady.Wait()
}

// UnblockForShutdown posts data_ready once without a corresponding
// request, used by the signal handler to wake a blocked server loop so it
// can observe the shutdown flag and exit (spec §4.3/§6).
func (r *Region) UnblockForShutdown() error {
	return r.dataReady.Post()
}

// HasMessage reports whether the request slot currently holds a message.
func (r *Region) HasMessage() bool {
	return r.getBool(offHasMessage)
}

// ReadRequest decodes the framed message currently in the request slot.
func (r *Region) ReadRequest() (Frame, error) {
	size := r.getUint32(offMessageSize)
	if int(size) > MaxMessageSize {
		return Frame{}, fmt.Errorf("transport: stored message_size %d exceeds MaxMessageSize", size)
	}
	return Decode(r.data[offRequestBuf : offRequestBuf+int(size)])
}

// ClearMessage marks the request slot consumed (spec §4.3, before the
// mutex is released).
func (r *Region) ClearMessage() {
	r.setBool(offHasMessage, false)
}

// ReleaseMutex posts mutex, handing exclusive access back to whichever
// client acquires it next (spec §4.3's hand-off).
func (r *Region) ReleaseMutex() error {
	return r.mutex.Post()
}

// PostResponse writes payload into the response slot, tags it with the
// correlation id the request carried, and posts response_ready. Used only
// by request/response routes (spec §4.1/§4.2).
func (r *Region) PostResponse(responseMessageID uint32, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: response payload %d > %d", ErrOversizeMessage, len(payload), MaxMessageSize)
	}

	copy(r.data[offResponseBuf:offResponseBuf+MaxMessageSize], payload)
	r.setUint32(offResponseSize, uint32(len(payload)))
	r.setUint32(offResponseMessageID, responseMessageID)
	r.setBool(offHasResponse, true)

	return r.responseReady.Post()
}
