package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName 请求与响应使用 json 编码，客户端通过 content-subtype 选择
const CodecName = "json"

var _ encoding.Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
