// Package ruqqus provides a Go client for the Ruqqus API that keeps an OAuth
// session alive and reports new posts and comments as events.
//
// # Overview
//
// A Session exchanges an application's credentials for an access token, refreshes
// the token shortly before it expires and polls the platform's listings for items
// published after a subscriber started listening. Every authenticated operation is
// checked against the scopes granted to the session before a request is sent.
//
// # Quick Start
//
// A session starts from a refresh token saved earlier, or from a one-time access
// code obtained through AuthURL:
//
//	session, err := ruqqus.NewSession(&ruqqus.Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		RefreshToken: "saved-refresh-token",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Close()
//
//	session.OnPost(func(p *types.Post) {
//		fmt.Printf("%s in +%s\n", p.Content.Title, p.Guild.Name)
//	})
//
//	if err := session.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//	<-session.Done()
//
// # Connection Lifecycle
//
// Connect performs the first credential exchange, fetches the session identity when
// the identity scope was granted, emits the login event and starts polling. It runs
// once; later calls return the first result. The session stays online until Close
// is called or a credential error leaves no way to refresh the token, in which case
// Done is closed and Err returns the *AuthError.
//
// Transient refresh failures are retried with a growing delay and never end the
// session.
//
// # Events
//
// Subscribe, OnPost, OnComment, OnLogin and OnRefresh register handlers. The first
// poll after a kind gains a subscriber only records what is already listed, so
// handlers see items published after they subscribed, each at most once. Polling
// needs the read scope; without it subscriptions stay silent.
//
// Persist rotated credentials from a refresh handler:
//
//	session.OnRefresh(func(c types.Credentials) {
//		saveRefreshToken(c.RefreshToken)
//	})
//
// # Authorization
//
// AuthURL builds the URL a user visits to grant access:
//
//	u, err := ruqqus.AuthURL(ruqqus.AuthURLOptions{
//		ClientID:    "your-client-id",
//		RedirectURI: "http://localhost:8080/callback",
//		Scopes:      []string{"identity,read,vote"},
//		Permanent:   true,
//	})
//
// The platform redirects back with a code, which becomes Config.AccessCode.
//
// # Error Handling
//
// Errors are typed and can be inspected with errors.As and errors.Is:
//
//	_, err := session.VotePost(ctx, "abc", types.VoteUp)
//	var scopeErr *errors.ScopeError
//	switch {
//	case errors.As(err, &scopeErr):
//		// the session lacks scopeErr.Scope; no request was sent
//	case errors.Is(err, errors.ErrNotFound):
//		// the post does not exist
//	case errors.Is(err, errors.ErrClosed):
//		// the session was closed
//	}
//
// # Logging and Metrics
//
// Config.Logger receives structured diagnostics through log/slog. Config.Registerer
// receives Prometheus collectors for requests, polls, events and token refreshes.
package ruqqus
