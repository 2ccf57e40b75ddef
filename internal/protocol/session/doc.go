// Package session streams frames over a connection through a fixed-size
// buffer.
//
// Ownership boundary:
// - filling a read buffer from an io.Reader and decoding frames out of it
// - encoding frames into a write buffer and draining it to an io.Writer
// - per-stream frame and byte counters
// - dialing a frame peer with retry backoff
package session
