package types

import (
	"strings"
	"time"
)

// Scope is a named permission granted by the account owner at authorization time.
type Scope string

const (
	ScopeIdentity    Scope = "identity"
	ScopeCreate      Scope = "create"
	ScopeRead        Scope = "read"
	ScopeUpdate      Scope = "update"
	ScopeDelete      Scope = "delete"
	ScopeVote        Scope = "vote"
	ScopeGuildmaster Scope = "guildmaster"
)

// AllScopes is the fixed scope vocabulary in the order the platform documents it.
var AllScopes = []Scope{
	ScopeIdentity,
	ScopeCreate,
	ScopeRead,
	ScopeUpdate,
	ScopeDelete,
	ScopeVote,
	ScopeGuildmaster,
}

// IsKnownScope reports whether s belongs to the fixed vocabulary.
func IsKnownScope(s string) bool {
	for _, known := range AllScopes {
		if string(known) == s {
			return true
		}
	}
	return false
}

// ScopeSet is a set of granted scopes.
type ScopeSet map[Scope]struct{}

// ParseScopes parses a comma separated scope list as sent by the grant endpoint.
// Tokens outside the vocabulary are ignored rather than rejected.
func ParseScopes(raw string) ScopeSet {
	set := make(ScopeSet)
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if IsKnownScope(name) {
			set[Scope(name)] = struct{}{}
		}
	}
	return set
}

// Has reports whether the scope is in the set.
func (s ScopeSet) Has(scope Scope) bool {
	_, ok := s[scope]
	return ok
}

// List returns the scopes in vocabulary order.
func (s ScopeSet) List() []Scope {
	out := make([]Scope, 0, len(s))
	for _, scope := range AllScopes {
		if s.Has(scope) {
			out = append(out, scope)
		}
	}
	return out
}

// String returns the comma separated form used on the wire.
func (s ScopeSet) String() string {
	names := make([]string, 0, len(s))
	for _, scope := range s.List() {
		names = append(names, string(scope))
	}
	return strings.Join(names, ",")
}

// GrantMode selects which exchange payload is authoritative.
type GrantMode int

const (
	// GrantAuthorizationCode exchanges a one-time authorization code.
	GrantAuthorizationCode GrantMode = iota
	// GrantRefreshToken exchanges a refresh token.
	GrantRefreshToken
)

func (m GrantMode) String() string {
	switch m {
	case GrantAuthorizationCode:
		return "code"
	case GrantRefreshToken:
		return "refresh"
	default:
		return "unknown"
	}
}

// Credentials is a point-in-time copy of the session's token state.
type Credentials struct {
	ClientID     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       ScopeSet
}

// Kind tags the variant of a formatted platform object.
type Kind string

const (
	KindUser    Kind = "user"
	KindPost    Kind = "post"
	KindComment Kind = "comment"
	KindGuild   Kind = "guild"
	KindBadge   Kind = "badge"
)

// Fullname prefixes used by the platform to distinguish item types.
const (
	PrefixUser    = "t1_"
	PrefixPost    = "t2_"
	PrefixComment = "t3_"
	PrefixGuild   = "t4_"
)

// Object defines the behaviour shared by every formatted platform object.
type Object interface {
	GetID() string
	GetFullname() string
	Kind() Kind
}

// ThingData holds the identifier fields common to users, posts, comments and guilds.
type ThingData struct {
	ID       string `json:"id"`
	Fullname string `json:"full_id"`
	Link     string `json:"link"`
	FullLink string `json:"full_link"`
}

// GetID returns the object's ID.
func (td ThingData) GetID() string {
	return td.ID
}

// GetFullname returns the object's prefixed identifier.
func (td ThingData) GetFullname() string {
	return td.Fullname
}

// Text is a body rendered both as raw markdown and sanitised HTML.
type Text struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// Title is a cosmetic title a user has chosen to display.
type Title struct {
	Name  string `json:"name"`
	ID    int    `json:"id"`
	Kind  int    `json:"kind"`
	Color string `json:"color"`
}

// Votes holds the score breakdown of a post or comment.
type Votes struct {
	Score     int `json:"score"`
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
	// Voted is the session user's own vote: 1, -1 or 0.
	Voted int `json:"voted"`
}

// Badge is an award displayed on a user profile.
type Badge struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// GetID returns the badge name; badges carry no platform identifier.
func (b *Badge) GetID() string { return b.Name }

// GetFullname returns an empty string; badges have no fullname.
func (b *Badge) GetFullname() string { return "" }

// Kind returns KindBadge.
func (b *Badge) Kind() Kind { return KindBadge }

// UserStats holds a user's activity counters.
type UserStats struct {
	Posts      int `json:"posts"`
	PostRep    int `json:"post_rep"`
	Comments   int `json:"comments"`
	CommentRep int `json:"comment_rep"`
}

// User is a platform account. Banned accounts only carry the identifying
// fields plus BanReason.
type User struct {
	ThingData
	Username  string    `json:"username"`
	Title     *Title    `json:"title,omitempty"`
	Bio       Text      `json:"bio"`
	Stats     UserStats `json:"stats"`
	AvatarURL string    `json:"avatar_url"`
	BannerURL string    `json:"banner_url"`
	CreatedAt time.Time `json:"created_at"`
	Banned    bool      `json:"banned"`
	BanReason string    `json:"ban_reason,omitempty"`
	Badges    []*Badge  `json:"badges,omitempty"`
}

// Kind returns KindUser.
func (u *User) Kind() Kind { return KindUser }

// GuildFlags holds moderation state of a guild.
type GuildFlags struct {
	Banned        bool `json:"banned"`
	Private       bool `json:"private"`
	Restricted    bool `json:"restricted"`
	AgeRestricted bool `json:"age_restricted"`
}

// Guild is a community on the platform.
type Guild struct {
	ThingData
	Name         string     `json:"name"`
	Description  Text       `json:"description"`
	Color        string     `json:"color"`
	Subscribers  int        `json:"subscribers"`
	Guildmasters int        `json:"guildmasters"`
	IconURL      string     `json:"icon_url"`
	BannerURL    string     `json:"banner_url"`
	CreatedAt    time.Time  `json:"created_at"`
	Flags        GuildFlags `json:"flags"`
}

// Kind returns KindGuild.
func (g *Guild) Kind() Kind { return KindGuild }

// PostContent is the submitted content of a post.
type PostContent struct {
	Title     string `json:"title"`
	Body      Text   `json:"body"`
	Domain    string `json:"domain"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Embed     string `json:"embed"`
}

// PostFlags holds moderation and content flags of a post.
type PostFlags struct {
	Archived bool `json:"archived"`
	Banned   bool `json:"banned"`
	Deleted  bool `json:"deleted"`
	NSFW     bool `json:"nsfw"`
	NSFL     bool `json:"nsfl"`
	Edited   bool `json:"edited"`
	// Yanked is set when the post was moved out of its original guild.
	Yanked bool `json:"yanked"`
}

// Post is a submission to a guild.
type Post struct {
	ThingData
	Author        *User       `json:"author"`
	Content       PostContent `json:"content"`
	Votes         Votes       `json:"votes"`
	CreatedAt     time.Time   `json:"created_at"`
	EditedAt      time.Time   `json:"edited_at"`
	Flags         PostFlags   `json:"flags"`
	Guild         *Guild      `json:"guild"`
	OriginalGuild *Guild      `json:"original_guild,omitempty"`
}

// Kind returns KindPost.
func (p *Post) Kind() Kind { return KindPost }

// CommentFlags holds moderation and content flags of a comment.
type CommentFlags struct {
	Archived  bool `json:"archived"`
	Banned    bool `json:"banned"`
	Deleted   bool `json:"deleted"`
	NSFW      bool `json:"nsfw"`
	NSFL      bool `json:"nsfl"`
	Offensive bool `json:"offensive"`
	Edited    bool `json:"edited"`
}

// CommentParent identifies what a comment replies to.
type CommentParent struct {
	// Post is the ID of the post the comment belongs to.
	Post string `json:"post"`
	// Comment is the fullname of the parent comment, empty for top level comments.
	Comment string `json:"comment,omitempty"`
}

// Comment is a reply to a post or another comment.
type Comment struct {
	ThingData
	AuthorName string        `json:"author_username"`
	Content    Text          `json:"content"`
	Votes      Votes         `json:"votes"`
	Parent     CommentParent `json:"parent"`
	CreatedAt  time.Time     `json:"created_at"`
	EditedAt   time.Time     `json:"edited_at"`
	Level      int           `json:"chain_level"`
	Awards     int           `json:"awards"`
	Flags      CommentFlags  `json:"flags"`
	Guild      string        `json:"guild"`
}

// Kind returns KindComment.
func (c *Comment) Kind() Kind { return KindComment }

// Feed is one page of a listing endpoint.
type Feed struct {
	Posts   []*Post
	Page    int
	HasNext bool
}

// CommentPage is one page of a comment listing endpoint.
type CommentPage struct {
	Comments []*Comment
	Page     int
	HasNext  bool
}

// Sort orders for listing endpoints.
const (
	SortHot      = "hot"
	SortNew      = "new"
	SortTop      = "top"
	SortActivity = "activity"
	SortDisputed = "disputed"
)

// ListingRequest selects a page of a listing. Zero values mean page 1 sorted hot.
type ListingRequest struct {
	Page int
	Sort string
	// Limit truncates the returned page client side. Zero keeps the whole page.
	Limit int
}

// SubmitPostRequest describes a new post.
type SubmitPostRequest struct {
	Guild string
	Title string
	URL   string
	Body  string
}

// Vote direction for vote operations.
type Vote int

const (
	VoteDown  Vote = -1
	VoteClear Vote = 0
	VoteUp    Vote = 1
)
