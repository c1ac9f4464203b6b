// Package vault holds the client-side core of vault synchronization: the
// logical clock that stamps edits, the keyed RecordStore, the codec that
// seals a store into a snapshot blob, the divergence classifier and the
// per-record last-write-wins merge.
//
// Everything here is pure or in-memory. I/O lives in the callers
// (internal/client/syncer and the repositories behind it).
package vault
