// Package itchio provides a client for the itch.io desktop API.
//
// The API is a JSON-over-HTTP service rooted at {root}/api/1. Calls made on
// behalf of a user carry the user's API key as the first path segment.
//
// # Pacing
//
// Every request made through a Client waits on a shared gate first, so no
// two requests start closer together than the client's cooldown (130ms by
// default), however many goroutines are issuing them.
//
// # Basic Usage
//
//	client := itchio.NewClient(itchio.DefaultConfig())
//
//	// Exchange credentials for an API key
//	res, err := client.LoginWithPassword(ctx, "username", "password")
//
//	var login itchio.LoginResult
//	if err := res.Decode(&login); err != nil {
//	    // ...
//	}
//
//	// Act as that user
//	session := itchio.NewSession(client, login.Key.Key)
//	games, err := session.MyGames(ctx, nil)
//
// # Empty collections
//
// The backend sometimes encodes an empty list as {} instead of []. Session
// methods that return a list (games, owned_keys, collections, uploads) repair
// that field before returning; EnsureArray does the same for other fields.
//
// # Error Handling
//
// A non-200 status is returned as *HTTPError. A 200 response whose body holds
// an errors list is returned as *APIError:
//
//	_, err := session.Me(ctx)
//	var apiErr *itchio.APIError
//	if errors.As(err, &apiErr) {
//	    for _, msg := range apiErr.Errors {
//	        // ...
//	    }
//	}
//
// Nothing is retried at this layer.
package itchio
