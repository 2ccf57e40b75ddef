// Package method encodes and decodes method frame payloads.
//
// Ownership boundary:
// - class-id / method-id envelope
// - argument schemas for the known classes
// - typed argument decoding and building, including packed bit arguments
package method
