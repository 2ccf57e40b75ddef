// Package server runs the frame service: a TCP listener speaking the frame
// protocol plus an HTTP admin surface over the same process state.
//
// Ownership boundary:
// - accept loop, per-connection frame handling and heartbeat replies
// - live and recently closed connection snapshots
// - frame event feed for admin subscribers
// - admin HTTP routes (health, metrics, connections, frame stream)
package server
