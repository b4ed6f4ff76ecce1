package auth

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestJSONParserFlattensScalars(t *testing.T) {
	fields, err := JSONParser{}.Parse(jsonResponse(`{"access":"A","expires_in":900,"admin":false,"scope":null}`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	expected := map[string]string{"access": "A", "expires_in": "900", "admin": "false"}
	if len(fields) != len(expected) {
		t.Fatalf("unexpected fields: %#v", fields)
	}
	for k, v := range expected {
		if fields[k] != v {
			t.Fatalf("fields[%q] = %q, want %q", k, fields[k], v)
		}
	}
}

func TestJSONParserRejectsNonObjects(t *testing.T) {
	for _, body := range []string{`["a"]`, `null`, `not-json`, `{"a":[1]}`, `{"a":{"b":"c"}}`} {
		if _, err := (JSONParser{}).Parse(jsonResponse(body)); err == nil {
			t.Fatalf("expected error for body %s", body)
		}
	}
}
