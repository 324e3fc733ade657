package test_generators

import (
	"math/rand"
	"strconv"
	"time"
)

// CommentGenerator generates realistic comment payloads for testing
type CommentGenerator struct {
	rand   *rand.Rand
	nextID int64
	users  []string
	bodies []string
}

// NewCommentGenerator creates a new comment generator
func NewCommentGenerator(seed int64) *CommentGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &CommentGenerator{
		rand:   rand.New(rand.NewSource(seed)),
		nextID: 5000,
		users:  []string{"commenter", "reply_guy", "lurker", "mod_bot", "first_timer"},
		bodies: []string{
			"Great post, thanks for sharing.",
			"I disagree, here's why.",
			"Source?",
			"This belongs in +general.",
			"Came here to say this.",
		},
	}
}

// GenerateComment creates a top level comment on postID.
func (cg *CommentGenerator) GenerateComment(postID string) Payload {
	return cg.generate(postID, "t2_"+postID, 1)
}

// GenerateReply creates a reply to parent, which must be a generated comment.
func (cg *CommentGenerator) GenerateReply(parent Payload) Payload {
	postID, _ := parent["post"].(string)
	parentID, _ := parent["id"].(string)
	level, _ := parent["level"].(int)
	return cg.generate(postID, "t3_"+parentID, level+1)
}

// GenerateThread creates count comments on postID, each replying to the previous
// one with probability replyRate. The result is newest first.
func (cg *CommentGenerator) GenerateThread(postID string, count int, replyRate float64) []Payload {
	comments := make([]Payload, 0, count)
	for i := 0; i < count; i++ {
		if i > 0 && cg.rand.Float64() < replyRate {
			comments = append(comments, cg.GenerateReply(comments[i-1]))
			continue
		}
		comments = append(comments, cg.GenerateComment(postID))
	}
	for i, j := 0, len(comments)-1; i < j; i, j = i+1, j-1 {
		comments[i], comments[j] = comments[j], comments[i]
	}
	return comments
}

func (cg *CommentGenerator) generate(postID, parent string, level int) Payload {
	cg.nextID++
	id := strconv.FormatInt(cg.nextID, 36)
	body := cg.bodies[cg.rand.Intn(len(cg.bodies))]
	return Payload{
		"id":          id,
		"author_name": cg.users[cg.rand.Intn(len(cg.users))],
		"body":        body,
		"body_html":   "<p>" + body + "</p>",
		"parent":      parent,
		"post":        postID,
		"level":       level,
		"score":       cg.rand.Intn(100),
		"permalink":   "/post/" + postID + "/_/" + id,
		"created_utc": time.Now().Add(-time.Duration(cg.rand.Intn(3600)) * time.Second).Unix(),
	}
}
