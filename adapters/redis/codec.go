package redis

import (
	"encoding/base64"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"bitmarket/engine"
)

// EncodeEvent 將引擎事件序列化為 Redis Stream 的訊息欄位。
// 使用 msgpack 序列化後以 base64 編碼，避免二進位內容在欄位值中出問題。
func EncodeEvent(ev engine.Event) (map[string]any, error) {
	bytes, err := msgpack.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal error: %w", err)
	}
	return map[string]any{
		"data": base64.StdEncoding.EncodeToString(bytes),
	}, nil
}

// DecodeEvent 將 Redis Stream 的訊息欄位還原為引擎事件
func DecodeEvent(message map[string]any) (engine.Event, error) {
	var ev engine.Event

	if len(message) == 0 {
		return ev, nil
	}

	dataStr, ok := message["data"].(string)
	if !ok {
		return ev, fmt.Errorf("data field not found or invalid type")
	}

	bytes, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return ev, fmt.Errorf("base64 decode error: %w", err)
	}

	if err := msgpack.Unmarshal(bytes, &ev); err != nil {
		return ev, fmt.Errorf("msgpack unmarshal error: %w", err)
	}
	return ev, nil
}
