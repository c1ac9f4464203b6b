// Package proto declares the vaultsync gRPC service. Messages are plain Go
// structs carried by a JSON codec registered under the "json" content
// subtype, so the service needs no generated code.
package proto

import (
	"encoding/json"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"google.golang.org/grpc/encoding"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return common.JSONContentSubtype
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
