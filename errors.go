// Package bse provides a decoder and collection pipeline for the BSE
// Direct NFCAST UDP multicast market data feed.
package bse

import "errors"

// Common errors
var (
	// ErrPacketTooShort is returned when a datagram is smaller than the 36-byte header
	ErrPacketTooShort = errors.New("packet too short for header")

	// ErrUnsupportedMessageType is returned for message types other than 2020/2021
	ErrUnsupportedMessageType = errors.New("unsupported message type")

	// ErrFormatLengthMismatch is returned when the format ID does not match the packet length
	ErrFormatLengthMismatch = errors.New("format id does not match packet length")

	// ErrNotConnected is returned when attempting an operation on a closed transport
	ErrNotConnected = errors.New("transport not connected")

	// ErrTokenMasterNotFound is returned when the token master file cannot be read
	ErrTokenMasterNotFound = errors.New("token master file not found")
)
