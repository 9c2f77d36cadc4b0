// Package server provides the local HTTP plumbing behind "yms auth login".
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback for the Yandex OAuth service.
// The handler validates the state parameter, exchanges the authorization code for a token,
// and sends the result through a channel. It only processes one callback.
package server
