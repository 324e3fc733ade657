package ruqqus

import (
	"encoding/json"

	"github.com/jamesprial/go-ruqqus/internal"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// Formatter turns raw API objects into their typed views. Every method returns a
// nil object, without an error, when the payload carries no id.
type Formatter interface {
	ParseUser(data json.RawMessage) (*types.User, error)
	ParseGuild(data json.RawMessage) (*types.Guild, error)
	ParsePost(data json.RawMessage) (*types.Post, error)
	ParseComment(data json.RawMessage) (*types.Comment, error)
	ParseFeed(data json.RawMessage, page int) (*types.Feed, error)
	ParseCommentPage(data json.RawMessage, page int) (*types.CommentPage, error)
}

var _ Formatter = (*internal.Parser)(nil)

// NewFormatter returns the formatter sessions use. siteURL prefixes permalinks and
// asset paths, for example "https://ruqqus.com".
func NewFormatter(siteURL string) Formatter {
	return internal.NewParser(siteURL)
}

// Formatter returns the session's formatter, for decoding payloads the session
// does not fetch itself.
func (s *Session) Formatter() Formatter {
	return s.parser
}
