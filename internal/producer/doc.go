// Package producer is the upstream side of the relay: it finds codes in a
// stream of chat messages, suppresses codes it already delivered recently and
// sends the rest to the relay over a reconnecting producer connection.
package producer
