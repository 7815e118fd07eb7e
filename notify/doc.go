// Package notify implements the background job queue the engine uses for
// outbound email work: verification and password-reset notifications.
//
// The engine treats delivery as fire-and-forget: it enqueues and returns
// without awaiting completion. A [Worker] drains the queue out of process
// and records per-job status snapshots (pending, running, completed,
// failed) that can be polled through [Queue.Status].
//
// Status records are stored with a fixed, versioned binary encoding. They
// are decoded structurally, never reconstructed by evaluating stored text.
package notify
