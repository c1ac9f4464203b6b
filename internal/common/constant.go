// Package common contains shared constants and sentinel errors used across
// vaultsync components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// JSONContentSubtype is the gRPC content-subtype under which the wire codec
// is registered.
const JSONContentSubtype = "json"
