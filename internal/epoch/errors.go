package epoch

import "errors"

// ErrShutdown is returned by EnterEpoch/EnterReadOnly once the manager has
// been shut down. It is the only error the enter calls return (the exit
// calls report ErrUnknownEpoch); callers must quiesce all worker threads
// before calling Shutdown.
var ErrShutdown = errors.New("epoch: manager is shut down")

// ErrUnknownEpoch is a debug-time assertion surface for exit_epoch without
// a matching enter_epoch. Go has no release/debug build split, so this is
// always checked; callers that rely on mismatched enter/exit have a bug.
var ErrUnknownEpoch = errors.New("epoch: exit without matching enter")
