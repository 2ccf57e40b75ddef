// Package buffer owns the fixed-capacity wire buffer.
//
// Ownership boundary:
// - independent write/read cursors over one backing array
// - big-endian octet/short/long/longlong codecs
// - short/long string, field table and raw byte codecs
// - flip/clear/compact/record/restore cursor lifecycle
//
// A Buffer is owned by one logical user at a time and performs no locking.
package buffer
