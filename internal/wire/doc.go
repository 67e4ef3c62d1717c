// Package wire provides the sealed value model used for invocation arguments
// and its canonical JSON encoding.
//
// Every request body and filter tree is serialized through MarshalCanonical so
// that two logically-equal values produce byte-identical output:
//   - Object keys sorted by UTF-16 code units (RFC 8785), not UTF-8 bytes
//   - No HTML escaping; U+2028 and U+2029 emitted literally
//   - Strings NFC normalized at the serialization boundary
//   - Numbers kept as their literal JSON text, so decode/encode is byte-exact
//
// wire imports nothing internal. All other packages that build or inspect
// request arguments depend on it.
package wire
