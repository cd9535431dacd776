// Package protocol defines the CryptoNote peer-to-peer commands carried over
// levin buckets: the administrative commands in the 1000 range and the block
// and transaction notifications in the 2000 range. Blocks and transactions
// are carried as opaque blobs.
package protocol
