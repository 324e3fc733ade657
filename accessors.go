package ruqqus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// authorize checks the connection and then the scope. It runs before any argument
// is validated, so a missing scope is reported whatever the arguments. An empty
// scope skips the gate.
func (s *Session) authorize(op string, scope types.Scope) error {
	if err := s.ensureConnected(op); err != nil {
		return err
	}
	if scope == "" {
		return nil
	}
	return s.gate.Allow(scope)
}

// GetGuild fetches a guild by name. It returns nil when the response carries no guild.
//
// Requires the read scope.
func (s *Session) GetGuild(ctx context.Context, name string) (*types.Guild, error) {
	if err := s.authorize("GetGuild", types.ScopeRead); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateGuildName(name); err != nil {
		return nil, err
	}
	raw, err := s.caller.Get(ctx, "guild/"+name, nil)
	if err != nil {
		return nil, err
	}
	return s.parser.ParseGuild(raw)
}

// GetPost fetches a post by id.
//
// Requires the read scope.
func (s *Session) GetPost(ctx context.Context, id string) (*types.Post, error) {
	if err := s.authorize("GetPost", types.ScopeRead); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateID("post", id); err != nil {
		return nil, err
	}
	raw, err := s.caller.Get(ctx, "post/"+id, nil)
	if err != nil {
		return nil, err
	}
	return s.parser.ParsePost(raw)
}

// GetComment fetches a comment by id.
//
// Requires the read scope.
func (s *Session) GetComment(ctx context.Context, id string) (*types.Comment, error) {
	if err := s.authorize("GetComment", types.ScopeRead); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateID("comment", id); err != nil {
		return nil, err
	}
	raw, err := s.caller.Get(ctx, "comment/"+id, nil)
	if err != nil {
		return nil, err
	}
	return s.parser.ParseComment(raw)
}

// GetUser fetches a user by username. Banned users come back with Banned set and
// only their identifying fields filled.
//
// Requires the read scope.
func (s *Session) GetUser(ctx context.Context, username string) (*types.User, error) {
	if err := s.authorize("GetUser", types.ScopeRead); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateUsername(username); err != nil {
		return nil, err
	}
	raw, err := s.caller.Get(ctx, "user/"+username, nil)
	if err != nil {
		return nil, err
	}
	return s.parser.ParseUser(raw)
}

// FrontPage fetches a page of the session user's front page. A nil request
// fetches page 1 sorted hot.
//
// Requires the read scope.
func (s *Session) FrontPage(ctx context.Context, req *types.ListingRequest) (*types.Feed, error) {
	if err := s.authorize("FrontPage", types.ScopeRead); err != nil {
		return nil, err
	}
	return s.feed(ctx, "front/listing", req)
}

// All fetches a page of the listing across all guilds.
//
// Requires the read scope.
func (s *Session) All(ctx context.Context, req *types.ListingRequest) (*types.Feed, error) {
	if err := s.authorize("All", types.ScopeRead); err != nil {
		return nil, err
	}
	return s.feed(ctx, "all/listing", req)
}

// GuildFeed fetches a page of a guild's posts.
//
// Requires the read scope.
func (s *Session) GuildFeed(ctx context.Context, guild string, req *types.ListingRequest) (*types.Feed, error) {
	if err := s.authorize("GuildFeed", types.ScopeRead); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateGuildName(guild); err != nil {
		return nil, err
	}
	return s.feed(ctx, "guild/"+guild+"/listing", req)
}

// UserFeed fetches a page of a user's posts.
//
// Requires the read scope.
func (s *Session) UserFeed(ctx context.Context, username string, req *types.ListingRequest) (*types.Feed, error) {
	if err := s.authorize("UserFeed", types.ScopeRead); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateUsername(username); err != nil {
		return nil, err
	}
	return s.feed(ctx, "user/"+username+"/listing", req)
}

// GuildComments fetches a page of a guild's comments.
//
// Requires the read scope.
func (s *Session) GuildComments(ctx context.Context, guild string, req *types.ListingRequest) (*types.CommentPage, error) {
	if err := s.authorize("GuildComments", types.ScopeRead); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateGuildName(guild); err != nil {
		return nil, err
	}
	return s.comments(ctx, "guild/"+guild+"/comments", req)
}

// UserComments fetches a page of a user's comments.
//
// Requires the read scope.
func (s *Session) UserComments(ctx context.Context, username string, req *types.ListingRequest) (*types.CommentPage, error) {
	if err := s.authorize("UserComments", types.ScopeRead); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateUsername(username); err != nil {
		return nil, err
	}
	return s.comments(ctx, "user/"+username+"/comments", req)
}

func (s *Session) feed(ctx context.Context, path string, req *types.ListingRequest) (*types.Feed, error) {
	query, page, err := s.listingQuery(req, types.SortHot)
	if err != nil {
		return nil, err
	}
	raw, err := s.caller.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	feed, err := s.parser.ParseFeed(raw, page)
	if err != nil {
		return nil, err
	}
	if req != nil && req.Limit > 0 && len(feed.Posts) > req.Limit {
		feed.Posts = feed.Posts[:req.Limit]
	}
	return feed, nil
}

func (s *Session) comments(ctx context.Context, path string, req *types.ListingRequest) (*types.CommentPage, error) {
	query, page, err := s.listingQuery(req, "")
	if err != nil {
		return nil, err
	}
	raw, err := s.caller.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	out, err := s.parser.ParseCommentPage(raw, page)
	if err != nil {
		return nil, err
	}
	if req != nil && req.Limit > 0 && len(out.Comments) > req.Limit {
		out.Comments = out.Comments[:req.Limit]
	}
	return out, nil
}

// listingQuery builds the page and sort parameters. An empty defaultSort leaves
// sort out unless the request sets one.
func (s *Session) listingQuery(req *types.ListingRequest, defaultSort string) (url.Values, int, error) {
	if err := s.validator.ValidateListing(req); err != nil {
		return nil, 0, err
	}

	page, sort := 1, defaultSort
	if req != nil {
		if req.Page > 0 {
			page = req.Page
		}
		if req.Sort != "" {
			sort = req.Sort
		}
	}

	query := url.Values{"page": {strconv.Itoa(page)}}
	if sort != "" {
		query.Set("sort", sort)
	}
	return query, page, nil
}

// IsGuildAvailable reports whether a guild name is free. It needs no scope.
func (s *Session) IsGuildAvailable(ctx context.Context, name string) (bool, error) {
	if err := s.authorize("IsGuildAvailable", ""); err != nil {
		return false, err
	}
	if err := s.validator.ValidateGuildName(name); err != nil {
		return false, err
	}
	raw, err := s.caller.Get(ctx, "board_available/"+name, nil)
	if err != nil {
		return false, err
	}
	return s.parser.ParseAvailability(raw)
}

// IsUsernameAvailable reports whether a username is free. It needs no scope.
func (s *Session) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	if err := s.authorize("IsUsernameAvailable", ""); err != nil {
		return false, err
	}
	if err := s.validator.ValidateUsername(username); err != nil {
		return false, err
	}
	raw, err := s.caller.Get(ctx, "is_available/"+username, nil)
	if err != nil {
		return false, err
	}
	return s.parser.ParseAvailability(raw)
}

// SubmitPost creates a post in a guild and returns it as stored by the server.
//
// Requires the create scope.
func (s *Session) SubmitPost(ctx context.Context, req *types.SubmitPostRequest) (*types.Post, error) {
	if err := s.authorize("SubmitPost", types.ScopeCreate); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateSubmission(req); err != nil {
		return nil, err
	}

	form := url.Values{
		"board": {req.Guild},
		"title": {req.Title},
	}
	if req.URL != "" {
		form.Set("url", req.URL)
	}
	if req.Body != "" {
		form.Set("body", req.Body)
	}

	raw, err := s.caller.Post(ctx, "submit", form)
	if err != nil {
		return nil, err
	}
	return s.parser.ParsePost(raw)
}

// CommentOnPost posts a top-level comment on a post.
//
// Requires the create scope.
func (s *Session) CommentOnPost(ctx context.Context, postID, body string) (*types.Comment, error) {
	if err := s.authorize("CommentOnPost", types.ScopeCreate); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateID("post", postID); err != nil {
		return nil, err
	}
	return s.comment(ctx, "CommentOnPost", types.PrefixPost+postID, body)
}

// ReplyToComment posts a reply to a comment.
//
// Requires the create scope.
func (s *Session) ReplyToComment(ctx context.Context, commentID, body string) (*types.Comment, error) {
	if err := s.authorize("ReplyToComment", types.ScopeCreate); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateID("comment", commentID); err != nil {
		return nil, err
	}
	return s.comment(ctx, "ReplyToComment", types.PrefixComment+commentID, body)
}

func (s *Session) comment(ctx context.Context, op, parentFullname, body string) (*types.Comment, error) {
	if err := s.validator.ValidateBody(body); err != nil {
		return nil, err
	}
	form := url.Values{
		"parent_fullname": {parentFullname},
		"body":            {body},
	}
	raw, err := s.caller.Post(ctx, "comment", form)
	if err != nil {
		return nil, err
	}
	return s.parser.ParseComment(raw)
}

// VotePost votes on a post and returns the refetched post. The refetch is skipped,
// and nil returned, when the read scope is missing.
//
// Requires the vote scope.
func (s *Session) VotePost(ctx context.Context, id string, dir types.Vote) (*types.Post, error) {
	if err := s.vote(ctx, "VotePost", "post", id, dir); err != nil {
		return nil, err
	}
	if !s.store.HasScope(types.ScopeRead) {
		return nil, nil
	}
	return s.GetPost(ctx, id)
}

// VoteComment votes on a comment and returns the refetched comment. The refetch is
// skipped, and nil returned, when the read scope is missing.
//
// Requires the vote scope.
func (s *Session) VoteComment(ctx context.Context, id string, dir types.Vote) (*types.Comment, error) {
	if err := s.vote(ctx, "VoteComment", "comment", id, dir); err != nil {
		return nil, err
	}
	if !s.store.HasScope(types.ScopeRead) {
		return nil, nil
	}
	return s.GetComment(ctx, id)
}

func (s *Session) vote(ctx context.Context, op, kind, id string, dir types.Vote) error {
	if err := s.authorize(op, types.ScopeVote); err != nil {
		return err
	}
	if err := s.validator.ValidateID(kind, id); err != nil {
		return err
	}
	if err := s.validator.ValidateVote(dir); err != nil {
		return err
	}
	_, err := s.caller.Post(ctx, "vote/"+kind+"/"+id+"/"+strconv.Itoa(int(dir)), nil)
	return err
}

// DeletePost deletes one of the session user's posts.
//
// Requires the delete scope.
func (s *Session) DeletePost(ctx context.Context, id string) error {
	if err := s.authorize("DeletePost", types.ScopeDelete); err != nil {
		return err
	}
	if err := s.validator.ValidateID("post", id); err != nil {
		return err
	}
	return s.action(ctx, "delete_post/"+id, "post deletion failed")
}

// DeleteComment deletes one of the session user's comments.
//
// Requires the delete scope.
func (s *Session) DeleteComment(ctx context.Context, id string) error {
	if err := s.authorize("DeleteComment", types.ScopeDelete); err != nil {
		return err
	}
	if err := s.validator.ValidateID("comment", id); err != nil {
		return err
	}
	return s.action(ctx, "delete/comment/"+id, "comment deletion failed")
}

// TogglePostNSFW flips the NSFW flag of one of the session user's posts.
//
// Requires the update scope.
func (s *Session) TogglePostNSFW(ctx context.Context, id string) error {
	if err := s.authorize("TogglePostNSFW", types.ScopeUpdate); err != nil {
		return err
	}
	if err := s.validator.ValidateID("post", id); err != nil {
		return err
	}
	return s.action(ctx, "toggle_post_nsfw/"+id, "post update failed")
}

// TogglePostNSFL flips the NSFL flag of one of the session user's posts.
//
// Requires the update scope.
func (s *Session) TogglePostNSFL(ctx context.Context, id string) error {
	if err := s.authorize("TogglePostNSFL", types.ScopeUpdate); err != nil {
		return err
	}
	if err := s.validator.ValidateID("post", id); err != nil {
		return err
	}
	return s.action(ctx, "toggle_post_nsfl/"+id, "post update failed")
}

// action posts to an endpoint that answers with an empty object on success and an
// "error" field when the server refused, which is reported as a 403.
func (s *Session) action(ctx context.Context, path, failure string) error {
	raw, err := s.caller.Post(ctx, path, nil)
	if err != nil {
		return err
	}

	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && len(body.Error) > 0 && string(body.Error) != "null" && string(body.Error) != "false" {
		apiErr := pkgerrs.NewAPIError(http.StatusForbidden, string(raw))
		apiErr.Message = failure
		var code string
		if json.Unmarshal(body.Error, &code) == nil {
			apiErr.ErrorCode = code
		}
		return apiErr
	}
	return nil
}
