// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package permission

import (
	"errors"
	"fmt"
)

// ErrFailed is returned by every Change and Check call once the engine has
// poisoned itself. The only recovery is a process restart against a known
// good sink.
var ErrFailed = errors.New("permission: engine poisoned")

// errIoWrite, errIoFlush and errIoClear classify which sink phase failed.
// Change wraps the sink's own error with one of these so callers can tell
// Write/Flush failures (batch rejected, engine still healthy) from a Clear
// failure (engine poisoned) via errors.Is.
var (
	errIoWrite = errors.New("permission: io write failed")
	errIoFlush = errors.New("permission: io flush failed")
	errIoClear = errors.New("permission: io clear failed")
)

func wrapIoWrite(cause error) error { return fmt.Errorf("%w: %v", errIoWrite, cause) }
func wrapIoFlush(cause error) error { return fmt.Errorf("%w: %v", errIoFlush, cause) }
func wrapIoClear(cause error) error { return fmt.Errorf("%w: %v", errIoClear, cause) }
