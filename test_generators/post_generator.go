package test_generators

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// Payload is a raw API object as the platform serves it.
type Payload = map[string]any

// PostGenerator generates realistic post payloads for testing
type PostGenerator struct {
	rand           *rand.Rand
	nextID         int64
	titleTemplates []string
	guilds         []string
	users          []string
}

// NewPostGenerator creates a new post generator. Ids are sequential base36
// numbers, so generated listings never repeat an id.
func NewPostGenerator(seed int64) *PostGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &PostGenerator{
		rand:   rand.New(rand.NewSource(seed)),
		nextID: 1000,
		titleTemplates: []string{
			"Ask +%s: %s",
			"%s - %s",
			"[Discussion] %s",
			"PSA: %s",
			"TIL about %s",
			"Analysis: %s",
		},
		guilds: []string{
			"general", "programming", "gaming", "technology", "science",
			"news", "music", "movies", "books", "ruqqus",
		},
		users: []string{
			"tech_enthusiast", "casual_user", "expert_analyst", "curious_mind",
			"seasoned_veteran", "newbie_user", "power_user", "guildmaster_1",
		},
	}
}

// GeneratePost creates a post payload with a fresh id.
func (pg *PostGenerator) GeneratePost() Payload {
	return pg.GeneratePostWithOptions(PostOptions{})
}

// GeneratePosts creates count posts, newest first, as a listing endpoint returns them.
func (pg *PostGenerator) GeneratePosts(count int) []Payload {
	posts := make([]Payload, count)
	for i := count - 1; i >= 0; i-- {
		posts[i] = pg.GeneratePost()
	}
	return posts
}

// PostOptions controls post generation characteristics
type PostOptions struct {
	Guild string
	// NestedAuthor serves the author as an object instead of a bare name.
	NestedAuthor bool
	// BodyHTML overrides the generated HTML body.
	BodyHTML string
	NSFW     bool
}

// GeneratePostWithOptions creates a post with specific characteristics
func (pg *PostGenerator) GeneratePostWithOptions(opts PostOptions) Payload {
	id := pg.generatePostID()
	guild := opts.Guild
	if guild == "" {
		guild = pg.randElement(pg.guilds)
	}
	author := pg.randElement(pg.users)
	title := pg.generateTitle(guild)
	created := time.Now().Add(-time.Duration(pg.rand.Intn(86400)) * time.Second)

	body := pg.generateSentence()
	bodyHTML := opts.BodyHTML
	if bodyHTML == "" {
		bodyHTML = "<p>" + body + "</p>"
	}

	post := Payload{
		"id":          id,
		"title":       title,
		"body":        body,
		"body_html":   bodyHTML,
		"guild_name":  guild,
		"author_name": author,
		"permalink":   fmt.Sprintf("/post/%s/%s", id, slug(title)),
		"score":       pg.rand.Intn(500),
		"upvotes":     pg.rand.Intn(500),
		"downvotes":   pg.rand.Intn(50),
		"created_utc": created.Unix(),
		"edited_utc":  0,
		"is_nsfw":     opts.NSFW,
	}
	if opts.NestedAuthor {
		post["author"] = Payload{"id": pg.generatePostID(), "username": author, "permalink": "/@" + author}
	} else {
		post["author"] = author
	}
	if pg.rand.Float32() < 0.3 {
		post["url"] = "https://example.com/" + pg.randString(8)
		post["domain"] = "example.com"
	}
	return post
}

// Listing wraps items the way listing endpoints do.
func Listing(nextExists bool, items ...Payload) Payload {
	data := make([]any, len(items))
	for i, item := range items {
		data[i] = item
	}
	return Payload{"data": data, "next_exists": nextExists}
}

// IDs returns the ids of items in order.
func IDs(items []Payload) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i], _ = item["id"].(string)
	}
	return out
}

func (pg *PostGenerator) generateTitle(guild string) string {
	tmpl := pg.randElement(pg.titleTemplates)
	if strings.Count(tmpl, "%s") == 2 {
		return fmt.Sprintf(tmpl, guild, pg.generateSentence())
	}
	return fmt.Sprintf(tmpl, pg.generateSentence())
}

func (pg *PostGenerator) generateSentence() string {
	words := []string{"the", "guild", "new", "release", "update", "community", "vote", "post", "rules", "thread"}
	n := 4 + pg.rand.Intn(6)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = pg.randElement(words)
	}
	return strings.Join(parts, " ")
}

func (pg *PostGenerator) generatePostID() string {
	pg.nextID++
	return strconv.FormatInt(pg.nextID, 36)
}

func (pg *PostGenerator) randElement(slice []string) string {
	return slice[pg.rand.Intn(len(slice))]
}

func (pg *PostGenerator) randString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[pg.rand.Intn(len(charset))]
	}
	return string(b)
}

func slug(title string) string {
	s := strings.ToLower(strings.Join(strings.Fields(title), "-"))
	s = strings.Map(func(r rune) rune {
		if r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, s)
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}
