package extractors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

var (
	// ErrMissingCredentials means none of the configured credential sources exist
	ErrMissingCredentials = errors.New("no Google credentials found")

	// ErrConsentRequired means the cached OAuth token cannot be refreshed and
	// interactive consent is disabled; run the auth command
	ErrConsentRequired = errors.New("OAuth consent required, run the auth command")
)

// SheetsScope is the only scope the dashboard asks for
const SheetsScope = sheets.SpreadsheetsReadonlyScope

// CredentialResolver picks credentials in order: ambient platform credentials,
// service-account key file, installed-app OAuth with a cached token
type CredentialResolver struct {
	auth   config.AuthConfig
	logger *utils.ETLLogger

	findDefault func(ctx context.Context, scopes ...string) (*google.Credentials, error)
	prompt      func(authURL string)
}

// NewCredentialResolver creates a CredentialResolver
func NewCredentialResolver(auth config.AuthConfig, logger *utils.ETLLogger) *CredentialResolver {
	r := &CredentialResolver{
		auth:        auth,
		logger:      logger,
		findDefault: google.FindDefaultCredentials,
	}
	r.prompt = func(authURL string) {
		fmt.Fprintf(os.Stderr, "Open this URL in a browser to authorize read access to the schedule:\n\n%s\n\n", authURL)
		r.logger.Info("Waiting for OAuth consent on the loopback redirect")
	}
	return r
}

// SetPrompt replaces how the consent URL is shown to the operator
func (r *CredentialResolver) SetPrompt(prompt func(authURL string)) {
	r.prompt = prompt
}

// Client returns an authorized HTTP client for the Sheets API
func (r *CredentialResolver) Client(ctx context.Context) (*http.Client, error) {
	ts, err := r.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}

// TokenSource resolves a token source following the credential order
func (r *CredentialResolver) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	// 1. Ambient credentials (GOOGLE_APPLICATION_CREDENTIALS, gcloud, metadata server)
	if r.auth.UseDefault {
		creds, err := r.findDefault(ctx, SheetsScope)
		if err == nil {
			r.logger.Debug("Using default Google credentials")
			return creds.TokenSource, nil
		}
		r.logger.Debug("Default credentials unavailable: %v", err)
	}

	// 2. Service account key
	if fileExists(r.auth.ServiceAccountFile) {
		data, err := os.ReadFile(r.auth.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read service account file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, SheetsScope)
		if err != nil {
			return nil, fmt.Errorf("invalid service account file %s: %w", r.auth.ServiceAccountFile, err)
		}
		r.logger.Debug("Using service account %s", r.auth.ServiceAccountFile)
		return creds.TokenSource, nil
	}

	// 3. Installed-app OAuth
	if fileExists(r.auth.ClientSecretFile) {
		oauthCfg, err := r.oauthConfig()
		if err != nil {
			return nil, err
		}
		return r.installedAppTokenSource(ctx, oauthCfg)
	}

	return nil, fmt.Errorf("%w: checked default credentials=%v, %q, %q",
		ErrMissingCredentials, r.auth.UseDefault, r.auth.ServiceAccountFile, r.auth.ClientSecretFile)
}

// Reauthorize drops the cached token and runs the consent flow again
func (r *CredentialResolver) Reauthorize(ctx context.Context) error {
	if !fileExists(r.auth.ClientSecretFile) {
		return fmt.Errorf("%w: client secret %q", ErrMissingCredentials, r.auth.ClientSecretFile)
	}
	oauthCfg, err := r.oauthConfig()
	if err != nil {
		return err
	}
	if err := os.Remove(r.auth.TokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cached token: %w", err)
	}
	tok, err := r.consent(ctx, oauthCfg)
	if err != nil {
		return err
	}
	return saveToken(r.auth.TokenFile, tok)
}

func (r *CredentialResolver) oauthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(r.auth.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(data, SheetsScope)
	if err != nil {
		return nil, fmt.Errorf("invalid client secret file %s: %w", r.auth.ClientSecretFile, err)
	}
	return oauthCfg, nil
}

func (r *CredentialResolver) installedAppTokenSource(ctx context.Context, oauthCfg *oauth2.Config) (oauth2.TokenSource, error) {
	tok, err := loadToken(r.auth.TokenFile)
	if err != nil {
		r.logger.Debug("No usable cached token: %v", err)
	}

	if tok == nil || (!tok.Valid() && tok.RefreshToken == "") {
		if !r.auth.Interactive {
			return nil, ErrConsentRequired
		}
		tok, err = r.consent(ctx, oauthCfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(r.auth.TokenFile, tok); err != nil {
			r.logger.Warn("Failed to cache OAuth token: %v", err)
		}
	}

	// an expired token with a refresh token is refreshed on first use and written back
	return &cachingTokenSource{
		base:   oauthCfg.TokenSource(ctx, tok),
		path:   r.auth.TokenFile,
		last:   tok.AccessToken,
		logger: r.logger,
	}, nil
}

// consent runs the installed-app flow with a loopback redirect listener
func (r *CredentialResolver) consent(ctx context.Context, oauthCfg *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", r.auth.RedirectPort))
	if err != nil {
		return nil, fmt.Errorf("failed to open OAuth redirect listener: %w", err)
	}

	flowCfg := *oauthCfg
	flowCfg.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr().String())
	state := uuid.NewString()

	codes := make(chan string, 1)
	failures := make(chan error, 1)

	router := mux.NewRouter()
	router.HandleFunc("/callback", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			http.Error(w, "authorization denied", http.StatusForbidden)
			select {
			case failures <- fmt.Errorf("authorization denied: %s", q.Get("error")):
			default:
			}
			return
		}
		fmt.Fprintln(w, "Authorization complete, you can close this window.")
		select {
		case codes <- q.Get("code"):
		default:
		}
	}).Methods(http.MethodGet)

	srv := &http.Server{Handler: router}
	go srv.Serve(listener)
	defer srv.Shutdown(context.Background())

	r.prompt(flowCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	select {
	case code := <-codes:
		tok, err := flowCfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		r.logger.Info("OAuth consent completed")
		return tok, nil
	case err := <-failures:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for OAuth consent: %w", ctx.Err())
	}
}

// cachingTokenSource writes every newly issued token back to the cache file
type cachingTokenSource struct {
	base   oauth2.TokenSource
	path   string
	logger *utils.ETLLogger

	mu   sync.Mutex
	last string
}

func (s *cachingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh OAuth token (run the auth command if it was revoked): %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := saveToken(s.path, tok); err != nil {
			s.logger.Warn("Failed to cache refreshed token: %v", err)
		}
	}
	return tok, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token cache %s: %w", path, err)
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
