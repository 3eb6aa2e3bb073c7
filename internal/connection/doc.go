// Package connection implements the per-stream connection worker.
//
// A Worker:
//   - Dials the stream's endpoint, directly or through a SOCKS5 proxy
//   - Authenticates private streams and attaches the listen key header
//   - Sends subscribe frames in per-request chunks through a rate limiter
//   - Routes data frames to the data buffer, responses to the result ring
//     and error frames to the error ring
//   - Reconnects with exponential backoff and restores the stream's
//     authoritative subscription set
package connection
