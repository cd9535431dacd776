// Package portable implements the self-describing "portable storage" binary
// value format used by CryptoNote peers.
//
// A payload is a Section: an ordered list of named entries. Entries are typed
// scalars, length-prefixed blobs, nested sections or homogeneous arrays.
// Lengths and counts are written as RawSize values, a variable-length integer
// whose width is carried in the two marker bits of its first byte.
//
// Decoding is built on resumable readers (see Reader) so the same code path
// serves one-shot decoding of a complete buffer and incremental decoding of a
// byte stream that arrives in arbitrary chunks.
package portable
