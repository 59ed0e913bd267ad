package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	// ClientSecretsFile is the Google API credentials.json downloaded from the
	// Cloud console, kept in the taskflow config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile holds the access and refresh token once the user has
	// authorised taskflow.
	TokenFile = "token.json"

	// LocalhostAuthPort is where the redirect listener waits for the code.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

// CalendarScopes are the scopes the calendar export needs.
var CalendarScopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// Flow runs the installed-app OAuth flow against credentials and tokens
// stored in Dir.
type Flow struct {
	Dir    string
	Scopes []string
	Port   string
}

func NewFlow(dir string) *Flow {
	return &Flow{Dir: dir, Scopes: CalendarScopes, Port: LocalhostAuthPort}
}

func (f *Flow) TokenPath() string {
	return filepath.Join(f.Dir, TokenFile)
}

// Config builds the oauth2 config from credentials.json.
func (f *Flow) Config() (*oauth2.Config, error) {
	path := filepath.Join(f.Dir, ClientSecretsFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", path, err)
	}

	cfg, err := google.ConfigFromJSON(b, f.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	cfg.RedirectURL = redirectURL(cfg.RedirectURL, f.Port)
	return cfg, nil
}

// redirectURL points localhost and out-of-band redirects at the local
// listener port. Other redirects are left alone.
func redirectURL(configured, port string) string {
	if configured == "" || configured == "urn:ietf:wg:oauth:2.0:oob" {
		return fmt.Sprintf("http://localhost:%s/oauth2callback", port)
	}
	u, err := url.Parse(configured)
	if err != nil {
		log.Printf("Warning: could not parse RedirectURL %q: %v. Using it as is.", configured, err)
		return configured
	}
	if u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		log.Printf("Warning: RedirectURL %s is not a localhost callback", configured)
		return configured
	}
	if u.Port() != port {
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	return u.String()
}

// Client returns an HTTP client that refreshes its token on demand and
// writes refreshed tokens back to TokenPath. Without a stored token it
// starts the browser authorisation.
func (f *Flow) Client(ctx context.Context) (*http.Client, error) {
	cfg, err := f.Config()
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(f.TokenPath())
	if err != nil {
		log.Printf("No existing token found at %s. Initiating web authorization flow...", f.TokenPath())
		tok, err = f.authorize(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(f.TokenPath(), tok); err != nil {
			return nil, err
		}
	}

	src := &savingTokenSource{
		base: cfg.TokenSource(ctx, tok),
		path: f.TokenPath(),
		last: tok,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// Reset forgets the stored token so the next Client call re-authorises.
func (f *Flow) Reset() error {
	err := os.Remove(f.TokenPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not delete token file %s: %w", f.TokenPath(), err)
	}
	return nil
}

// CalendarService returns an authenticated Google Calendar service.
func (f *Flow) CalendarService(ctx context.Context) (*calendar.Service, error) {
	client, err := f.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client for Calendar API: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Google Calendar service: %w", err)
	}
	return srv, nil
}

// authorize serves the redirect on localhost and exchanges the code it
// receives.
func (f *Flow) authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", f.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", f.Port, err)
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- errors.New("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprintln(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- fmt.Errorf("HTTP server error: %w", err):
			default:
			}
		}
	}()
	defer server.Close()

	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Open the following URL in your browser to authorize taskflow:\n%s\n", authURL)
	log.Printf("Waiting for authorization code on %s...", cfg.RedirectURL)

	select {
	case code := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := cfg.Exchange(exCtx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, errors.New("authorization timed out, please try again")
	}
}

// savingTokenSource persists a token whenever the underlying source hands
// out a different one.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			log.Printf("Warning: could not save refreshed token: %v", err)
		}
		s.last = tok
	}
	return tok, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
