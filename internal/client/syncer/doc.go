// Package syncer runs sync cycles for local vaults.
//
// One cycle pulls the server's latest snapshot, classifies it against the
// local cursor and then fast-forwards, merges or pushes. A push is a
// compare-and-swap on the server version; losing the race sends the cycle
// back to the pull, up to a fixed number of attempts.
//
//	Idle -> Pulling -> UpToDate          (nothing to send)
//	                -> Merging -> Pushing -> Idle
//	                              Pushing -> Pulling  (stale base)
package syncer
