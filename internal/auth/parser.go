package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// maxResponseBytes は上流レスポンス本文の読み込み上限です。
const maxResponseBytes = 1 << 20

// ResponseParser は上流のレスポンスを Cookie に保存するフィールドへ変換します。
type ResponseParser interface {
	Parse(resp *http.Response) (map[string]string, error)
}

// ParserFunc は関数を ResponseParser として扱うためのアダプターです。
type ParserFunc func(resp *http.Response) (map[string]string, error)

func (f ParserFunc) Parse(resp *http.Response) (map[string]string, error) {
	return f(resp)
}

// JSONParser はフラットな JSON オブジェクトを読み取る既定の ResponseParser です。
// 文字列はそのまま、数値と真偽値は文字列化し、null は無視します。
// ネストしたオブジェクトや配列はエラーです。
type JSONParser struct{}

func (JSONParser) Parse(resp *http.Response) (map[string]string, error) {
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			fields[k] = t
		case json.Number:
			fields[k] = t.String()
		case bool:
			fields[k] = strconv.FormatBool(t)
		default:
			return nil, fmt.Errorf("field %q is not a scalar value", k)
		}
	}
	return fields, nil
}
