// Package cli provides the vaultsync command-line client.
//
// It wires configuration, the local sqlite store, the gRPC transport and the
// sync orchestrator behind a set of cobra commands. Typical flow:
//
//	vaultsync init work          # create or join vault "work"
//	vaultsync put --title github --username me --password s3cret
//	vaultsync ls --search git    # entries mentioning "git"
//	vaultsync sync               # pull, merge and push every local vault
//	vaultsync watch              # keep syncing until interrupted
//
// The master password is read from VAULTSYNC_PASSWORD when set, otherwise
// it is prompted for on the terminal without echo.
package cli
