package photocluster

import (
	"context"

	"golang.org/x/oauth2"
)

// BearerInterceptor attaches an OAuth2 bearer token to outgoing requests.
// When the source is nil, fails, or yields an empty token the header is left
// off and the call proceeds unauthenticated; endpoints that require auth then
// answer 401 and the error surfaces through normal classification. Use
// oauth2.StaticTokenSource for fixed tokens.
func BearerInterceptor(source oauth2.TokenSource) RequestInterceptor {
	return func(ctx context.Context, d *RequestDescriptor) error {
		if source == nil {
			return nil
		}
		token, err := source.Token()
		if err != nil || token == nil || token.AccessToken == "" {
			return nil
		}
		d.Header.Set("Authorization", "Bearer "+token.AccessToken)
		return nil
	}
}

// HeaderInterceptor sets a fixed header on every request.
func HeaderInterceptor(key, value string) RequestInterceptor {
	return func(ctx context.Context, d *RequestDescriptor) error {
		d.Header.Set(key, value)
		return nil
	}
}
