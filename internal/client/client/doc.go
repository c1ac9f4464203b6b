// Package client is the device side of the sync transport.
//
// GRPCClient talks to the vaultsync server. Calls made on behalf of a vault
// carry that vault's access token, looked up through a TokenSource and
// injected by a unary interceptor. When the server reports an expired token
// and a re-authentication hook is installed, the hook is run once and the
// call is retried.
package client
