// Package frame encodes AMQP frames on top of a buffer.Buffer.
//
// Ownership boundary:
// - frame envelope: type, channel, size, payload, frame-end octet
// - protocol header announced before the first frame
// - basic class content headers carried in header frames
package frame
