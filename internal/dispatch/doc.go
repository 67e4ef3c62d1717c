// Package dispatch re-associates the raw method responses of a batch with
// the invocations that produced them and decodes each into its registered
// response type.
//
// Dispatch is a pure function of the request and the raw responses. It
// resolves no references and performs no I/O. Integrity problems such as an
// unknown client id or an undecodable response fail only the result they
// concern; the rest of the batch is still dispatched.
package dispatch
