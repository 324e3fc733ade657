package helpers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jamesprial/go-ruqqus/test_generators"
)

// JSONGenerator creates hostile payloads for parser and credential tests
type JSONGenerator struct {
	posts    *test_generators.PostGenerator
	comments *test_generators.CommentGenerator
}

// NewJSONGenerator creates a new JSONGenerator
func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{
		posts:    test_generators.NewPostGenerator(42),
		comments: test_generators.NewCommentGenerator(42),
	}
}

// PayloadCase is a raw payload and whether formatting it must fail.
type PayloadCase struct {
	Name    string
	JSON    string
	WantErr bool
	// WantNil is set when the payload formats to nil without an error.
	WantNil bool
}

// GenerateMalformedPosts returns post payloads with missing, null or mistyped fields.
func (g *JSONGenerator) GenerateMalformedPosts() []PayloadCase {
	return []PayloadCase{
		{Name: "null", JSON: `null`, WantNil: true},
		{Name: "empty object", JSON: `{}`, WantNil: true},
		{Name: "empty id", JSON: `{"id": "", "title": "x"}`, WantNil: true},
		{Name: "array", JSON: `[]`, WantErr: true},
		{Name: "string", JSON: `"post"`, WantErr: true},
		{Name: "numeric id", JSON: `{"id": 5}`, WantErr: true},
		{Name: "string score", JSON: `{"id": "a", "score": "high"}`, WantErr: true},
		{Name: "numeric author", JSON: `{"id": "a", "author": 12}`, WantErr: true},
		{Name: "array guild", JSON: `{"id": "a", "guild": []}`, WantErr: true},
		{Name: "truncated", JSON: `{"id": "a", "title": "x"`, WantErr: true},
		{Name: "negative timestamp", JSON: `{"id": "a", "created_utc": -5}`},
		{Name: "author without id", JSON: `{"id": "a", "author": {}}`},
		{Name: "null author and guild", JSON: `{"id": "a", "author": null, "guild": null}`},
		{Name: "unknown fields", JSON: `{"id": "a", "evil": {"nested": [1, 2, 3]}, "__proto__": {}}`},
	}
}

// GenerateMalformedComments returns comment payloads with odd parent references.
func (g *JSONGenerator) GenerateMalformedComments() []PayloadCase {
	return []PayloadCase{
		{Name: "null", JSON: `null`, WantNil: true},
		{Name: "no id", JSON: `{"body": "x"}`, WantNil: true},
		{Name: "numeric level", JSON: `{"id": "c", "level": "deep"}`, WantErr: true},
		{Name: "parent object", JSON: `{"id": "c", "parent": {"id": "t3_p"}, "post": {"id": "abc"}}`},
		{Name: "parent number", JSON: `{"id": "c", "parent": 7}`},
		{Name: "empty parent", JSON: `{"id": "c", "parent": "", "post": ""}`},
	}
}

// GenerateMalformedListings returns listing payloads with broken envelopes.
func (g *JSONGenerator) GenerateMalformedListings() []PayloadCase {
	return []PayloadCase{
		{Name: "null", JSON: `null`},
		{Name: "null data", JSON: `{"data": null}`},
		{Name: "missing data", JSON: `{"next_exists": true}`},
		{Name: "holes", JSON: `{"data": [null, {}, {"id": "a"}]}`},
		{Name: "object data", JSON: `{"data": {}}`, WantErr: true},
		{Name: "numeric items", JSON: `{"data": [1, 2]}`, WantErr: true},
		{Name: "string next_exists", JSON: `{"data": [], "next_exists": "yes"}`, WantErr: true},
		{Name: "array", JSON: `[]`, WantErr: true},
		{Name: "one bad item", JSON: `{"data": [{"id": "a"}, {"id": 2}]}`, WantErr: true},
	}
}

// GenerateHostileHTML returns HTML bodies carrying script and event handler injection.
func (g *JSONGenerator) GenerateHostileHTML() []string {
	return []string{
		`<p>hi</p><script>alert(1)</script>`,
		`<img src=x onerror="alert(1)">`,
		`<a href="javascript:alert(1)">click</a>`,
		`<iframe src="https://evil.example"></iframe>`,
		`<p onclick="steal()">text</p>`,
		`<svg><script>alert(1)</script></svg>`,
		`<style>body{display:none}</style><p>x</p>`,
		`<scr<script>ipt>alert(1)</script>`,
	}
}

// GenerateLargeListing returns a listing of size generated posts.
func (g *JSONGenerator) GenerateLargeListing(size int) string {
	return mustJSON(test_generators.Listing(true, g.posts.GeneratePosts(size)...))
}

// GenerateCommentListing returns a listing holding a generated thread on postID.
func (g *JSONGenerator) GenerateCommentListing(postID string, size int) string {
	return mustJSON(test_generators.Listing(false, g.comments.GenerateThread(postID, size, 0.5)...))
}

// GenerateHostilePost returns a post whose HTML body is html.
func (g *JSONGenerator) GenerateHostilePost(html string) string {
	return mustJSON(g.posts.GeneratePostWithOptions(test_generators.PostOptions{BodyHTML: html, NestedAuthor: true}))
}

// GenerateDeeplyNested returns depth nested arrays under a post's guild field.
func (g *JSONGenerator) GenerateDeeplyNested(depth int) string {
	return `{"id": "a", "guild": ` + strings.Repeat("[", depth) + strings.Repeat("]", depth) + `}`
}

// GrantCase is a grant endpoint answer and how the exchange must classify it.
type GrantCase struct {
	Name   string
	Status int
	Body   string
	// Fatal is set when the answer must end the session.
	Fatal bool
}

// GenerateMalformedGrantResponses returns grant endpoint answers a session must survive
// or reject without panicking.
func (g *JSONGenerator) GenerateMalformedGrantResponses() []GrantCase {
	return []GrantCase{
		{Name: "not json", Status: http.StatusOK, Body: `not json`},
		{Name: "empty object", Status: http.StatusOK, Body: `{}`},
		{Name: "empty body", Status: http.StatusOK, Body: ``},
		{Name: "missing scopes", Status: http.StatusOK, Body: `{"access_token": "x", "expires_at": 9999999999}`},
		{Name: "string expiry", Status: http.StatusOK, Body: `{"access_token": "x", "expires_at": "soon", "scopes": "read"}`},
		{Name: "negative expiry", Status: http.StatusOK, Body: `{"access_token": "x", "expires_at": -1, "scopes": "read"}`},
		{Name: "server error page", Status: http.StatusInternalServerError, Body: `<html>500</html>`},
		{Name: "unavailable", Status: http.StatusServiceUnavailable, Body: `{"error": "maintenance"}`},
		{Name: "oversized", Status: http.StatusOK, Body: `{"access_token": "` + strings.Repeat("a", OversizedBodyBytes)},
		{Name: "oauth error", Status: http.StatusUnauthorized, Body: `{"oauth_error": "Invalid refresh_token"}`, Fatal: true},
		{Name: "oauth error with 200", Status: http.StatusOK, Body: `{"oauth_error": "Invalid ` + "`client_id`" + ` or ` + "`client_secret`" + `"}`, Fatal: true},
		{Name: "bare client error", Status: http.StatusBadRequest, Body: `{}`, Fatal: true},
		{Name: "error field", Status: http.StatusForbidden, Body: `{"error": "invalid_client"}`, Fatal: true},
	}
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
