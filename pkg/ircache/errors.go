package ircache

import "errors"

// errLegacyFrame marks a malformed function/get_ir payload.
var errLegacyFrame = errors.New("ircache: malformed legacy graph frame")
