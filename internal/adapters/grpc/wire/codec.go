// Package wire は TimeTrackingService のメッセージを google.protobuf.Struct と相互変換します。
// 生成コードを持たないため、各メッセージは JSON タグ付きの構造体として定義します。
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMalformed はメッセージが期待する形をしていない場合に返されます。
var ErrMalformed = errors.New("wire: malformed message")

// Encode は v を Struct に変換します。
func Encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return out, nil
}

// Decode は Struct を v に変換します。未知のフィールドはエラーにします。
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("%w: message is required", ErrMalformed)
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
