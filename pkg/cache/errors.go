package cache

import "errors"

// ErrNotInitialized is returned by every public operation when the
// backing file or mapping could not be opened (spec §4.4's IoError
// degrading the store to "uninitialized").
var ErrNotInitialized = errors.New("cache: store is not initialized")

// ErrEmptyInput is returned by Put for a zero-length key or value.
var ErrEmptyInput = errors.New("cache: key and value must be non-empty")

// ErrKeyTooLong is returned by Put when key would not fit, including its
// null terminator, in the fixed-width key field (spec §6's key[256]).
var ErrKeyTooLong = errors.New("cache: key exceeds slot table key width")

// ErrNameTooLong is returned by Put when functionName would not fit,
// including its null terminator, in the fixed-width function_name field
// (spec §6's function_name[256]).
var ErrNameTooLong = errors.New("cache: function name exceeds slot table name width")

// ErrFull is returned by Put when no slot or no contiguous free space
// remains even after an automatic compaction pass.
var ErrFull = errors.New("cache: no free slot or space")

// ErrCorrupt marks a checksum mismatch detected on Get. The entry is
// surfaced as a miss, not removed (spec §9's "checksum on corruption"
// note).
var ErrCorrupt = errors.New("cache: checksum mismatch")
