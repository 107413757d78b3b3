package views

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waflawe/Omenforcer/backend/services/forum"
)

func TestMarkdown(t *testing.T) {
	out := string(Markdown("Hello **world**\n<script>alert(1)</script>"))
	assert.Contains(t, out, "<strong>world</strong>")
	assert.NotContains(t, out, "<script>")

	out = string(Markdown("| a | b |\n|---|---|\n| 1 | 2 |"))
	assert.Contains(t, out, "<table>")
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", "/"},
		{"/forum/", "/forum/"},
		{"https://evil.example", "/"},
		{"//evil.example", "/"},
		{"forum/", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeNext(tt.next), tt.next)
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, raw := range []string{"", "0", "-1", "abc"} {
		_, err := parseID(raw)
		assert.Error(t, err, raw)
	}
}

func TestPager(t *testing.T) {
	app := fiber.New()
	var got Pager
	app.Get("/forum/search/", func(c *fiber.Ctx) error {
		got = pager(c, forum.Paginate(20, 45), 45)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/forum/search/?search=go&offset=20", nil))
	require.NoError(t, err)

	assert.Equal(t, 20, got.Offset)
	next, err := url.Parse(got.Next)
	require.NoError(t, err)
	assert.Equal(t, "/forum/search/", next.Path)
	assert.Equal(t, "40", next.Query().Get("offset"))
	assert.Equal(t, "go", next.Query().Get("search"))

	back, err := url.Parse(got.Back)
	require.NoError(t, err)
	assert.Equal(t, "0", back.Query().Get("offset"))
}
