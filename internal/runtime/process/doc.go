// Package process supervises local child processes on Linux.
//
// A process is spawned in its own process group and handed to a Watcher,
// which reaps it with wait4(2) on a goroutine locked to a dedicated OS thread.
// The watcher classifies every wait result, retries on transient states
// (stopped, continued, ptrace stops, EINTR) and publishes the single terminal
// outcome first on the process's exit handle and then on the runtime event
// sink.
//
// A watcher that can no longer determine its process's fate, or whose event
// sink is gone, never invents an outcome. What happens next is decided by its
// FailurePolicy: abort the whole runtime (the default) or fail only the
// affected process.
package process
