package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// DefaultSiteURL is prefixed to permalinks and site-relative asset paths.
const DefaultSiteURL = "https://ruqqus.com"

// Parser turns raw API payloads into formatted objects. Payloads without an id
// format to nil without an error.
type Parser struct {
	siteURL string
	policy  *bluemonday.Policy
}

// NewParser creates a parser for the given site. An empty siteURL selects DefaultSiteURL.
func NewParser(siteURL string) *Parser {
	if siteURL == "" {
		siteURL = DefaultSiteURL
	}

	policy := bluemonday.UGCPolicy()
	policy.RequireNoReferrerOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Parser{
		siteURL: strings.TrimSuffix(siteURL, "/"),
		policy:  policy,
	}
}

type rawTitle struct {
	Text  string `json:"text"`
	ID    int    `json:"id"`
	Kind  int    `json:"kind"`
	Color string `json:"color"`
}

type rawBadge struct {
	Name       string  `json:"name"`
	Text       string  `json:"text"`
	URL        string  `json:"url"`
	CreatedUTC float64 `json:"created_utc"`
}

type rawUser struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Permalink    string     `json:"permalink"`
	Title        *rawTitle  `json:"title"`
	Bio          string     `json:"bio"`
	BioHTML      string     `json:"bio_html"`
	PostCount    int        `json:"post_count"`
	PostRep      int        `json:"post_rep"`
	CommentCount int        `json:"comment_count"`
	CommentRep   int        `json:"comment_rep"`
	ProfileURL   string     `json:"profile_url"`
	BannerURL    string     `json:"banner_url"`
	CreatedUTC   float64    `json:"created_utc"`
	IsBanned     bool       `json:"is_banned"`
	BanReason    string     `json:"ban_reason"`
	Badges       []rawBadge `json:"badges"`
}

type rawGuild struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DescriptionHTML string  `json:"description_html"`
	Color           string  `json:"color"`
	Fullname        string  `json:"fullname"`
	Permalink       string  `json:"permalink"`
	SubscriberCount int     `json:"subscriber_count"`
	ModsCount       int     `json:"mods_count"`
	ProfileURL      string  `json:"profile_url"`
	BannerURL       string  `json:"banner_url"`
	CreatedUTC      float64 `json:"created_utc"`
	IsBanned        bool    `json:"is_banned"`
	IsPrivate       bool    `json:"is_private"`
	IsRestricted    bool    `json:"is_restricted"`
	Over18          bool    `json:"over_18"`
}

type rawPost struct {
	ID            string          `json:"id"`
	Author        json.RawMessage `json:"author"`
	AuthorName    string          `json:"author_name"`
	Title         string          `json:"title"`
	Body          string          `json:"body"`
	BodyHTML      string          `json:"body_html"`
	Domain        string          `json:"domain"`
	URL           string          `json:"url"`
	ThumbURL      string          `json:"thumb_url"`
	EmbedURL      string          `json:"embed_url"`
	Score         int             `json:"score"`
	Upvotes       int             `json:"upvotes"`
	Downvotes     int             `json:"downvotes"`
	Voted         int             `json:"voted"`
	Fullname      string          `json:"fullname"`
	Permalink     string          `json:"permalink"`
	CreatedUTC    float64         `json:"created_utc"`
	EditedUTC     float64         `json:"edited_utc"`
	IsArchived    bool            `json:"is_archived"`
	IsBanned      bool            `json:"is_banned"`
	IsDeleted     bool            `json:"is_deleted"`
	IsNSFW        bool            `json:"is_nsfw"`
	IsNSFL        bool            `json:"is_nsfl"`
	Guild         json.RawMessage `json:"guild"`
	GuildName     string          `json:"guild_name"`
	OriginalGuild json.RawMessage `json:"original_guild"`
}

type rawComment struct {
	ID          string          `json:"id"`
	AuthorName  string          `json:"author_name"`
	Body        string          `json:"body"`
	BodyHTML    string          `json:"body_html"`
	Score       int             `json:"score"`
	Upvotes     int             `json:"upvotes"`
	Downvotes   int             `json:"downvotes"`
	Voted       int             `json:"voted"`
	Fullname    string          `json:"fullname"`
	Permalink   string          `json:"permalink"`
	Parent      json.RawMessage `json:"parent"`
	Post        json.RawMessage `json:"post"`
	CreatedUTC  float64         `json:"created_utc"`
	EditedUTC   float64         `json:"edited_utc"`
	Level       int             `json:"level"`
	AwardCount  int             `json:"award_count"`
	IsArchived  bool            `json:"is_archived"`
	IsBanned    bool            `json:"is_banned"`
	IsDeleted   bool            `json:"is_deleted"`
	IsNSFW      bool            `json:"is_nsfw"`
	IsNSFL      bool            `json:"is_nsfl"`
	IsOffensive bool            `json:"is_offensive"`
	GuildName   string          `json:"guild_name"`
}

type rawListing struct {
	Data       []json.RawMessage `json:"data"`
	NextExists bool              `json:"next_exists"`
}

// ParseUser formats a user payload. Banned users carry only their identifying
// fields and the ban reason.
func (p *Parser) ParseUser(data json.RawMessage) (*types.User, error) {
	var raw rawUser
	if err := decode(data, &raw, "user"); err != nil {
		return nil, err
	}
	return p.formatUser(&raw), nil
}

func (p *Parser) formatUser(raw *rawUser) *types.User {
	if raw.ID == "" {
		return nil
	}

	user := &types.User{
		ThingData: types.ThingData{
			ID:       raw.ID,
			Fullname: types.PrefixUser + raw.ID,
			Link:     raw.Permalink,
			FullLink: p.fullLink(raw.Permalink),
		},
		Username: raw.Username,
	}

	if raw.IsBanned {
		user.Banned = true
		user.BanReason = raw.BanReason
		return user
	}

	if raw.Title != nil {
		user.Title = &types.Title{
			Name:  titleName(raw.Title.Text),
			ID:    raw.Title.ID,
			Kind:  raw.Title.Kind,
			Color: raw.Title.Color,
		}
	}
	user.Bio = types.Text{Text: raw.Bio, HTML: p.sanitize(raw.BioHTML)}
	user.Stats = types.UserStats{
		Posts:      raw.PostCount,
		PostRep:    raw.PostRep,
		Comments:   raw.CommentCount,
		CommentRep: raw.CommentRep,
	}
	user.AvatarURL = p.assetURL(raw.ProfileURL)
	user.BannerURL = p.assetURL(raw.BannerURL)
	user.CreatedAt = unixTime(raw.CreatedUTC)

	for _, b := range raw.Badges {
		if b.Name == "" {
			continue
		}
		user.Badges = append(user.Badges, &types.Badge{
			Name:        b.Name,
			Description: b.Text,
			URL:         b.URL,
			CreatedAt:   unixTime(b.CreatedUTC),
		})
	}
	return user
}

// ParseGuild formats a guild payload.
func (p *Parser) ParseGuild(data json.RawMessage) (*types.Guild, error) {
	var raw rawGuild
	if err := decode(data, &raw, "guild"); err != nil {
		return nil, err
	}
	return p.formatGuild(&raw), nil
}

func (p *Parser) formatGuild(raw *rawGuild) *types.Guild {
	if raw.ID == "" {
		return nil
	}

	fullname := raw.Fullname
	if fullname == "" {
		fullname = types.PrefixGuild + raw.ID
	}

	return &types.Guild{
		ThingData: types.ThingData{
			ID:       raw.ID,
			Fullname: fullname,
			Link:     raw.Permalink,
			FullLink: p.fullLink(raw.Permalink),
		},
		Name:         raw.Name,
		Description:  types.Text{Text: raw.Description, HTML: p.sanitize(raw.DescriptionHTML)},
		Color:        raw.Color,
		Subscribers:  raw.SubscriberCount,
		Guildmasters: raw.ModsCount,
		IconURL:      p.assetURL(raw.ProfileURL),
		BannerURL:    p.assetURL(raw.BannerURL),
		CreatedAt:    unixTime(raw.CreatedUTC),
		Flags: types.GuildFlags{
			Banned:        raw.IsBanned,
			Private:       raw.IsPrivate,
			Restricted:    raw.IsRestricted,
			AgeRestricted: raw.Over18,
		},
	}
}

// ParsePost formats a post payload.
func (p *Parser) ParsePost(data json.RawMessage) (*types.Post, error) {
	var raw rawPost
	if err := decode(data, &raw, "post"); err != nil {
		return nil, err
	}
	return p.formatPost(&raw)
}

func (p *Parser) formatPost(raw *rawPost) (*types.Post, error) {
	if raw.ID == "" {
		return nil, nil
	}

	fullname := raw.Fullname
	if fullname == "" {
		fullname = types.PrefixPost + raw.ID
	}

	post := &types.Post{
		ThingData: types.ThingData{
			ID:       raw.ID,
			Fullname: fullname,
			Link:     raw.Permalink,
			FullLink: p.fullLink(raw.Permalink),
		},
		Content: types.PostContent{
			Title:     raw.Title,
			Body:      types.Text{Text: raw.Body, HTML: p.sanitize(raw.BodyHTML)},
			Domain:    raw.Domain,
			URL:       raw.URL,
			Thumbnail: raw.ThumbURL,
			Embed:     raw.EmbedURL,
		},
		Votes: types.Votes{
			Score:     raw.Score,
			Upvotes:   raw.Upvotes,
			Downvotes: raw.Downvotes,
			Voted:     raw.Voted,
		},
		CreatedAt: unixTime(raw.CreatedUTC),
		EditedAt:  unixTime(raw.EditedUTC),
		Flags: types.PostFlags{
			Archived: raw.IsArchived,
			Banned:   raw.IsBanned,
			Deleted:  raw.IsDeleted,
			NSFW:     raw.IsNSFW,
			NSFL:     raw.IsNSFL,
			Edited:   raw.EditedUTC > 0,
		},
	}

	author, err := p.author(raw.Author, raw.AuthorName)
	if err != nil {
		return nil, err
	}
	post.Author = author

	guild, err := p.guildRef(raw.Guild, raw.GuildName)
	if err != nil {
		return nil, err
	}
	post.Guild = guild

	if !isNull(raw.OriginalGuild) {
		original, err := p.guildRef(raw.OriginalGuild, "")
		if err != nil {
			return nil, err
		}
		post.OriginalGuild = original
		post.Flags.Yanked = original != nil
	}

	return post, nil
}

// author accepts either a nested user object or a bare username.
func (p *Parser) author(data json.RawMessage, fallback string) (*types.User, error) {
	if isNull(data) {
		if fallback == "" {
			return nil, nil
		}
		return &types.User{Username: fallback}, nil
	}
	if name, ok := asString(data); ok {
		return &types.User{Username: name}, nil
	}
	user, err := p.ParseUser(data)
	if err != nil {
		return nil, err
	}
	if user == nil && fallback != "" {
		user = &types.User{Username: fallback}
	}
	return user, nil
}

// guildRef accepts either a nested guild object or a bare guild name.
func (p *Parser) guildRef(data json.RawMessage, fallback string) (*types.Guild, error) {
	if isNull(data) {
		if fallback == "" {
			return nil, nil
		}
		return &types.Guild{Name: fallback}, nil
	}
	if name, ok := asString(data); ok {
		return &types.Guild{Name: name}, nil
	}
	guild, err := p.ParseGuild(data)
	if err != nil {
		return nil, err
	}
	if guild == nil && fallback != "" {
		guild = &types.Guild{Name: fallback}
	}
	return guild, nil
}

// ParseComment formats a comment payload.
func (p *Parser) ParseComment(data json.RawMessage) (*types.Comment, error) {
	var raw rawComment
	if err := decode(data, &raw, "comment"); err != nil {
		return nil, err
	}
	return p.formatComment(&raw), nil
}

func (p *Parser) formatComment(raw *rawComment) *types.Comment {
	if raw.ID == "" {
		return nil
	}

	fullname := raw.Fullname
	if fullname == "" {
		fullname = types.PrefixComment + raw.ID
	}

	comment := &types.Comment{
		ThingData: types.ThingData{
			ID:       raw.ID,
			Fullname: fullname,
			Link:     raw.Permalink,
			FullLink: p.fullLink(raw.Permalink),
		},
		AuthorName: raw.AuthorName,
		Content:    types.Text{Text: raw.Body, HTML: p.sanitize(raw.BodyHTML)},
		Votes: types.Votes{
			Score:     raw.Score,
			Upvotes:   raw.Upvotes,
			Downvotes: raw.Downvotes,
			Voted:     raw.Voted,
		},
		CreatedAt: unixTime(raw.CreatedUTC),
		EditedAt:  unixTime(raw.EditedUTC),
		Level:     raw.Level,
		Awards:    raw.AwardCount,
		Flags: types.CommentFlags{
			Archived:  raw.IsArchived,
			Banned:    raw.IsBanned,
			Deleted:   raw.IsDeleted,
			NSFW:      raw.IsNSFW,
			NSFL:      raw.IsNSFL,
			Offensive: raw.IsOffensive,
			Edited:    raw.EditedUTC > 0,
		},
		Guild: raw.GuildName,
	}

	comment.Parent.Post = refID(raw.Post)
	parent := refID(raw.Parent)
	switch {
	case strings.HasPrefix(parent, "t3"):
		comment.Parent.Comment = parent
	case comment.Parent.Post == "" && strings.HasPrefix(parent, types.PrefixPost):
		comment.Parent.Post = strings.TrimPrefix(parent, types.PrefixPost)
	}
	return comment
}

// ListingItems returns the raw items of a listing payload without formatting them.
func (p *Parser) ListingItems(data json.RawMessage) ([]json.RawMessage, error) {
	var listing rawListing
	if err := decode(data, &listing, "listing"); err != nil {
		return nil, err
	}
	return listing.Data, nil
}

// ItemID reads only the string id of a listing item. It returns "" when the item
// is not an object or carries no usable id.
func ItemID(item json.RawMessage) string {
	var obj struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(item, &obj) != nil {
		return ""
	}
	id, _ := asString(obj.ID)
	return id
}

// ParseFeed formats one page of a post listing. Items without an id are dropped.
func (p *Parser) ParseFeed(data json.RawMessage, page int) (*types.Feed, error) {
	var listing rawListing
	if err := decode(data, &listing, "listing"); err != nil {
		return nil, err
	}

	feed := &types.Feed{Page: page, HasNext: listing.NextExists, Posts: make([]*types.Post, 0, len(listing.Data))}
	for _, item := range listing.Data {
		post, err := p.ParsePost(item)
		if err != nil {
			return nil, err
		}
		if post != nil {
			feed.Posts = append(feed.Posts, post)
		}
	}
	return feed, nil
}

// ParseCommentPage formats one page of a comment listing. Items without an id are dropped.
func (p *Parser) ParseCommentPage(data json.RawMessage, page int) (*types.CommentPage, error) {
	var listing rawListing
	if err := decode(data, &listing, "comment listing"); err != nil {
		return nil, err
	}

	out := &types.CommentPage{Page: page, HasNext: listing.NextExists, Comments: make([]*types.Comment, 0, len(listing.Data))}
	for _, item := range listing.Data {
		comment, err := p.ParseComment(item)
		if err != nil {
			return nil, err
		}
		if comment != nil {
			out.Comments = append(out.Comments, comment)
		}
	}
	return out, nil
}

// ParseAvailability reads an availability lookup. The response is an object
// holding a single boolean, keyed "available" or by the name looked up.
func (p *Parser) ParseAvailability(data json.RawMessage) (bool, error) {
	var fields map[string]json.RawMessage
	if err := decode(data, &fields, "availability"); err != nil {
		return false, err
	}

	if v, ok := fields["available"]; ok {
		var available bool
		if err := json.Unmarshal(v, &available); err == nil {
			return available, nil
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var available bool
		if err := json.Unmarshal(fields[k], &available); err == nil {
			return available, nil
		}
	}
	return false, &pkgerrs.ParseError{Operation: "availability", Message: "response holds no boolean value"}
}

func (p *Parser) sanitize(html string) string {
	if html == "" {
		return ""
	}
	return p.policy.Sanitize(html)
}

func (p *Parser) fullLink(permalink string) string {
	if permalink == "" {
		return ""
	}
	return p.siteURL + permalink
}

func (p *Parser) assetURL(u string) string {
	if strings.HasPrefix(u, "/assets") {
		return p.siteURL + u
	}
	return u
}

// titleName strips the leading ", " that suffix-style titles carry.
func titleName(text string) string {
	if !strings.HasPrefix(text, ",") {
		return text
	}
	if parts := strings.SplitN(text, ", ", 3); len(parts) > 1 {
		return parts[1]
	}
	return strings.TrimSpace(strings.TrimPrefix(text, ","))
}

func unixTime(seconds float64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(seconds)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func decode(data json.RawMessage, v any, what string) error {
	if isNull(data) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &pkgerrs.ParseError{Operation: what, Err: fmt.Errorf("failed to parse %s data: %w", what, err)}
	}
	return nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func asString(data json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false
	}
	return s, true
}

// refID reads a reference that is either a bare id string or an object with an id.
func refID(data json.RawMessage) string {
	if isNull(data) {
		return ""
	}
	if s, ok := asString(data); ok {
		return s
	}
	var obj struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(data, &obj) == nil {
		return obj.ID
	}
	return ""
}
