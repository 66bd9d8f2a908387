// Package credstore resolves registry credentials for the rex CLI.
//
// Resolution order: explicit entries from the rex config file, then
// REX_USERNAME/REX_PASSWORD/REX_TOKEN environment variables, then the
// docker credential store (~/.docker/config.json and its helpers).
// The engine itself never touches any of these sources; it only sees
// the resolved client.Credential.
package credstore

import (
	"context"
	"os"

	"oras.land/oras-go/v2/registry/remote/credentials"

	"github.com/meigma/rex/client"
	"github.com/meigma/rex/internal/config"
)

// Docker Hub is addressed by several aliases; credentials stored under
// any of them apply to all.
var dockerHubAliases = map[string]bool{
	"docker.io":                true,
	"registry-1.docker.io":     true,
	"index.docker.io":          true,
	"https://index.docker.io/": true,
}

// Resolver resolves credentials per registry host.
type Resolver struct {
	auth   map[string]config.Auth
	docker credentials.Store // nil when docker config is unavailable
}

// New creates a resolver over the config file's auth entries, backed
// by the docker credential store when one can be loaded.
func New(auth map[string]config.Auth) *Resolver {
	r := &Resolver{auth: auth}
	if store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{}); err == nil {
		r.docker = store
	}
	return r
}

// CredentialFunc adapts the resolver to the client's credential hook.
func (r *Resolver) CredentialFunc() client.CredentialFunc {
	return func(ctx context.Context, host string) (client.Credential, error) {
		return r.Credential(ctx, host)
	}
}

// Credential resolves the credential for a registry host. An empty
// credential means anonymous access; resolution itself never fails
// the request.
func (r *Resolver) Credential(ctx context.Context, host string) (client.Credential, error) {
	if entry, ok := r.lookupConfig(host); ok {
		return entry, nil
	}
	if cred, ok := fromEnv(); ok {
		return cred, nil
	}
	return r.lookupDocker(ctx, host), nil
}

func (r *Resolver) lookupConfig(host string) (client.Credential, bool) {
	hosts := []string{host}
	if dockerHubAliases[host] {
		for alias := range dockerHubAliases {
			if alias != host {
				hosts = append(hosts, alias)
			}
		}
	}
	for _, h := range hosts {
		if entry, ok := r.auth[h]; ok {
			return client.Credential{
				Username: entry.Username,
				Password: entry.Password,
				Token:    entry.Token,
			}, true
		}
	}
	return client.Credential{}, false
}

func fromEnv() (client.Credential, bool) {
	if token := os.Getenv("REX_TOKEN"); token != "" {
		return client.Credential{Token: token}, true
	}
	if user := os.Getenv("REX_USERNAME"); user != "" {
		return client.Credential{
			Username: user,
			Password: os.Getenv("REX_PASSWORD"),
		}, true
	}
	return client.Credential{}, false
}

func (r *Resolver) lookupDocker(ctx context.Context, host string) client.Credential {
	if r.docker == nil {
		return client.Credential{}
	}

	hosts := []string{host}
	if dockerHubAliases[host] {
		for alias := range dockerHubAliases {
			if alias != host {
				hosts = append(hosts, alias)
			}
		}
	}
	for _, h := range hosts {
		cred, err := r.docker.Get(ctx, h)
		if err != nil {
			continue
		}
		switch {
		case cred.AccessToken != "":
			return client.Credential{Token: cred.AccessToken}
		case cred.Username != "":
			return client.Credential{Username: cred.Username, Password: cred.Password}
		}
	}
	return client.Credential{}
}
