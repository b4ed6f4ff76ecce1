package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Submitter は資格情報を上流の認証エンドポイントへ 1 回送信します。
type Submitter struct {
	client  *http.Client
	url     string
	method  string
	headers map[string]string
}

// NewSubmitter は Submitter を作成します。client が nil の場合は cfg.Timeout を持つクライアントを使います。
func NewSubmitter(cfg Config, client *http.Client) *Submitter {
	cfg = cfg.withDefaults()
	if client == nil {
		timeout := cfg.Timeout
		if timeout < 0 {
			timeout = 0
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Submitter{
		client:  client,
		url:     cfg.URL,
		method:  cfg.Method,
		headers: cfg.Headers,
	}
}

// Submit は username/password をフォーム形式で送信し、レスポンスを返します。
// 呼び出し側が resp.Body を閉じてください。
func (s *Submitter) Submit(ctx context.Context, username, password string) (*http.Response, error) {
	form := url.Values{
		"username": {username},
		"password": {password},
	}

	req, err := http.NewRequestWithContext(ctx, s.method, s.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", s.method, s.url, err)
	}
	return resp, nil
}
