package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLocation(t *testing.T) {
	for _, s := range []string{"main", "sidebar"} {
		if loc, err := ParseLocation(s); err != nil || string(loc) != s {
			t.Fatalf("ParseLocation(%q) = %q, %v", s, loc, err)
		}
	}
	if _, err := ParseLocation("footer"); err == nil {
		t.Fatal("expected error for unknown location")
	}
}

func TestLoginFormPlacement(t *testing.T) {
	tmpl := Templates()

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, LoginTemplate, LoginPage{Location: LocationSidebar, Action: "/login"}); err != nil {
		t.Fatalf("ExecuteTemplate returned error: %v", err)
	}
	body := buf.String()
	sidebar := body[strings.Index(body, `<aside`):strings.Index(body, `</aside>`)]
	if !strings.Contains(sidebar, `id="JWTLogin"`) {
		t.Fatalf("expected login form in the sidebar, got %s", body)
	}
	if strings.Count(body, `id="JWTLogin"`) != 1 {
		t.Fatalf("login form must be rendered exactly once: %s", body)
	}
}

func TestHomeRendersLogoutButton(t *testing.T) {
	var buf bytes.Buffer
	err := Templates().ExecuteTemplate(&buf, HomeTemplate, HomePage{
		Location:   LocationMain,
		Action:     "/logout",
		Username:   "alice",
		ButtonName: "Sign out",
		ButtonKey:  "logout-main",
	})
	if err != nil {
		t.Fatalf("ExecuteTemplate returned error: %v", err)
	}
	body := buf.String()
	if !strings.Contains(body, `id="logout-main"`) || !strings.Contains(body, "Sign out") {
		t.Fatalf("unexpected body: %s", body)
	}
}
