// Package contracts provides the message type and error taxonomy shared by syncprobe packages.
//
// A Message is an opaque payload with a header map. Correlation and reply
// routing information travels in well-known headers:
//   - HeaderCorrelationID: links a reply to its request
//   - HeaderReplyTo: destination the reply is expected on
//
// Errors are classified as invalid input, timeout or fatal. Every concrete
// error type in the module matches one of ErrInvalidInput, ErrTimeout or
// ErrFatal through errors.Is.
package contracts
