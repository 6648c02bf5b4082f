package network

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/geolab/lake-stager/registry"
)

const (
	MissingTokenURLErrorFormat = "dataset %s: client credentials require token_url"
	TokenFetchErrorFormat      = "error fetching access token for dataset %s"
)

// Authorizer attaches the configured credentials of a dataset to outgoing
// requests. Token sources are cached per dataset so client-credential tokens
// are reused until they expire.
type Authorizer struct {
	client *http.Client

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// NewAuthorizer uses client for token endpoint requests.
func NewAuthorizer(client *http.Client) *Authorizer {
	return &Authorizer{client: client, sources: make(map[string]oauth2.TokenSource)}
}

func (a *Authorizer) Authorize(req *http.Request, dataset string, auth registry.AuthConfig) error {
	switch {
	case auth.APIKey != "":
		header := auth.APIKeyHeader
		if header == "" {
			header = registry.DefaultAPIKeyHeader
		}
		req.Header.Set(header, auth.APIKey)
		return nil
	case auth.BearerToken == "" && auth.ClientID == "":
		return nil
	}

	source, err := a.tokenSource(dataset, auth)
	if err != nil {
		return err
	}
	token, err := source.Token()
	if err != nil {
		return errors.Wrapf(err, TokenFetchErrorFormat, dataset)
	}
	token.SetAuthHeader(req)
	return nil
}

func (a *Authorizer) tokenSource(dataset string, auth registry.AuthConfig) (oauth2.TokenSource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if source, ok := a.sources[dataset]; ok {
		return source, nil
	}

	var source oauth2.TokenSource
	if auth.BearerToken != "" {
		source = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: auth.BearerToken, TokenType: "Bearer"})
	} else {
		if auth.TokenURL == "" {
			return nil, errors.Errorf(MissingTokenURLErrorFormat, dataset)
		}
		conf := &clientcredentials.Config{
			ClientID:     auth.ClientID,
			ClientSecret: auth.ClientSecret,
			TokenURL:     auth.TokenURL,
		}
		ctx := context.Background()
		if a.client != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
		}
		source = conf.TokenSource(ctx)
	}

	a.sources[dataset] = source
	return source, nil
}
