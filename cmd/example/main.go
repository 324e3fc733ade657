package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jamesprial/go-ruqqus"
	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

func main() {
	// Get credentials from environment variables
	clientID := os.Getenv("RUQQUS_CLIENT_ID")
	clientSecret := os.Getenv("RUQQUS_CLIENT_SECRET")
	refreshToken := os.Getenv("RUQQUS_REFRESH_TOKEN")

	if clientID == "" || clientSecret == "" || refreshToken == "" {
		log.Fatal("RUQQUS_CLIENT_ID, RUQQUS_CLIENT_SECRET and RUQQUS_REFRESH_TOKEN environment variables are required")
	}

	// Route structured logs to stdout; adjust the level as needed.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	session, err := ruqqus.NewSession(&ruqqus.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
		UserAgent:    "example-bot/1.0",
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer session.Close()

	ctx := context.Background()
	if err := session.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}

	fmt.Printf("Connected with scopes: %s\n", session.Scopes())
	if me := session.Identity(); me != nil {
		fmt.Printf("Authenticated as @%s (%d post rep, %d comment rep)\n", me.Username, me.Stats.PostRep, me.Stats.CommentRep)
	}

	// Front page, newest first
	feed, err := session.FrontPage(ctx, &types.ListingRequest{Sort: types.SortNew, Limit: 5})
	if err != nil {
		log.Printf("Failed to get front page: %v", err)
	} else {
		fmt.Println("\nNewest front page posts:")
		for i, post := range feed.Posts {
			fmt.Printf("%d. %s (score: %d)\n", i+1, post.Content.Title, post.Votes.Score)
		}
	}

	// Guild info
	guild, err := session.GetGuild(ctx, "general")
	switch {
	case errors.Is(err, pkgerrs.ErrNotFound):
		fmt.Println("\n+general does not exist")
	case err != nil:
		log.Printf("Failed to get guild: %v", err)
	default:
		fmt.Printf("\nGuild: +%s\n", guild.Name)
		fmt.Printf("Subscribers: %d\n", guild.Subscribers)
		fmt.Printf("Description: %.100s\n", guild.Description.Text)
	}

	// Page through a guild with an iterator
	fmt.Println("\nFirst 15 posts in +general:")
	it := session.GuildFeedIterator(ctx, "general", &types.ListingRequest{Sort: types.SortTop})
	posts, err := it.Collect(15)
	if err != nil {
		log.Printf("Iteration stopped: %v", err)
	}
	for i, post := range posts {
		fmt.Printf("  %2d. %.60s\n", i+1, post.Content.Title)
	}

	// Comments of the first post author
	if len(posts) > 0 && posts[0].Author != nil {
		author := posts[0].Author.Username
		page, err := session.UserComments(ctx, author, &types.ListingRequest{Limit: 3})
		if err != nil {
			log.Printf("Failed to get comments of @%s: %v", author, err)
		} else {
			fmt.Printf("\nRecent comments by @%s:\n", author)
			for _, c := range page.Comments {
				fmt.Printf("  - %.80s\n", c.Content.Text)
			}
		}
	}

	// Availability lookups need no scope
	available, err := session.IsUsernameAvailable(ctx, "example_bot_name")
	if err == nil {
		fmt.Printf("\nUsername example_bot_name available: %v\n", available)
	}

	// Write operations are refused locally without the matching scope
	if _, err := session.VotePost(ctx, "abc", types.VoteUp); err != nil {
		var scopeErr *pkgerrs.ScopeError
		if errors.As(err, &scopeErr) {
			fmt.Printf("\nVoting skipped: %v\n", scopeErr)
		} else {
			log.Printf("Vote failed: %v", err)
		}
	}
}
