package transport

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// HeaderAuthorization is the header carrying the bearer credential
const HeaderAuthorization = "Authorization"

// CredentialSource yields the current bearer token, empty when there is no
// session. session.Store satisfies it.
type CredentialSource interface {
	Get(ctx context.Context) (string, error)
}

// WithAuth attaches the current credential to every request. The credential
// is read once per logical request, so all failover attempts carry the same
// value. Without a credential the Authorization header is removed rather than
// sent empty. A failing credential source aborts the request before any
// network call.
func WithAuth(source CredentialSource) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			token, err := source.Get(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to read credential: %w", err)
			}

			out := req.Clone()
			if token == "" {
				out.Header.Del(HeaderAuthorization)
			} else {
				out.Header.Set(HeaderAuthorization, BearerHeader(token))
			}
			return next.Do(ctx, out)
		})
	}
}

// BearerHeader formats the Authorization value for an access token
func BearerHeader(accessToken string) string {
	tok := &oauth2.Token{AccessToken: accessToken, TokenType: "bearer"}
	return tok.Type() + " " + tok.AccessToken
}
