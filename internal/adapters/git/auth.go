package git

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// tokenUsername is sent with token credentials; hosts only check the token.
const tokenUsername = "git"

// Private keys tried, in order, before the ssh agent.
var defaultKeyFiles = []string{"id_ed25519", "id_rsa"}

// AuthProvider lists the credentials to try when fetching from a remote.
type AuthProvider struct {
	token   string
	homeDir string
}

// NewAuthProvider creates an AuthProvider. An empty token means anonymous https.
func NewAuthProvider(token string) *AuthProvider {
	home, _ := os.UserHomeDir()
	return &AuthProvider{token: token, homeDir: home}
}

// NewAuthProviderWithHome creates an AuthProvider reading ssh keys below homeDir.
func NewAuthProviderWithHome(token, homeDir string) *AuthProvider {
	return &AuthProvider{token: token, homeDir: homeDir}
}

// Methods returns the authentication methods for url in the order they should be
// tried. A nil entry means no explicit credentials.
func (p *AuthProvider) Methods(url string) []transport.AuthMethod {
	endpoint, err := transport.NewEndpoint(url)
	if err != nil {
		return []transport.AuthMethod{nil}
	}

	switch endpoint.Protocol {
	case "ssh":
		return p.sshMethods(endpoint.User)
	case "http", "https":
		if p.token != "" {
			return []transport.AuthMethod{
				&http.BasicAuth{Username: tokenUsername, Password: p.token},
				nil,
			}
		}
		return []transport.AuthMethod{nil}
	default:
		return []transport.AuthMethod{nil}
	}
}

func (p *AuthProvider) sshMethods(username string) []transport.AuthMethod {
	if username == "" {
		username = currentUsername()
	}

	var methods []transport.AuthMethod
	if p.homeDir != "" {
		for _, name := range defaultKeyFiles {
			keyFile := filepath.Join(p.homeDir, ".ssh", name)
			if _, err := os.Stat(keyFile); err != nil {
				continue
			}
			keys, err := ssh.NewPublicKeysFromFile(username, keyFile, "")
			if err != nil {
				continue
			}
			methods = append(methods, keys)
		}
	}

	if agent, err := ssh.NewSSHAgentAuth(username); err == nil {
		methods = append(methods, agent)
	}

	if len(methods) == 0 {
		return []transport.AuthMethod{nil}
	}
	return methods
}

// isAuthError reports whether err means the credentials were rejected, in which case
// the next method is tried.
func isAuthError(err error) bool {
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		return true
	}
	return strings.Contains(err.Error(), "unable to authenticate")
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return tokenUsername
}
