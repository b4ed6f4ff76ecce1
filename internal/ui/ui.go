// Package ui はログイン / ログアウト画面のテンプレートを提供します。
package ui

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// テンプレート名
const (
	LoginTemplate = "login_page"
	HomeTemplate  = "home_page"
	ErrorTemplate = "error_page"
)

// Location はフォームを表示する領域です。
type Location string

const (
	LocationMain    Location = "main"
	LocationSidebar Location = "sidebar"
)

// ParseLocation は表示位置の文字列を検証します。
func ParseLocation(s string) (Location, error) {
	switch Location(s) {
	case LocationMain, LocationSidebar:
		return Location(s), nil
	default:
		return "", fmt.Errorf("invalid location %q: available locations are main and sidebar", s)
	}
}

// LoginPage はログインフォームの描画データです。
type LoginPage struct {
	Title    string
	Location Location
	Action   string
	Username string
	Messages []string
}

// HomePage はログイン後の画面（ログアウトボタン付き）の描画データです。
type HomePage struct {
	Title      string
	Location   Location
	Action     string
	Username   string
	ButtonName string
	ButtonKey  string
	Messages   []string
}

// ErrorPage はエラー表示の描画データです。
type ErrorPage struct {
	Title    string
	Messages []string
}

// Templates は埋め込みテンプレートを解析して返します。
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))
}
