package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"reviewradar/internal/domain"
)

// expirySkew: tokens within this window of expiry are refreshed eagerly,
// so a token never goes stale mid-pagination.
const expirySkew = 60 * time.Second

// Provider implements domain.TokenProvider on top of the stored
// credential row and the identity provider's token endpoint.
type Provider struct {
	store        domain.CredentialStore
	hc           *http.Client
	tokenURL     string
	clientID     string
	clientSecret string

	mu sync.Mutex // serializes refreshes across concurrent callers
}

func New(store domain.CredentialStore, tokenURL, clientID, clientSecret string) *Provider {
	return &Provider{
		store:        store,
		hc:           &http.Client{Timeout: 15 * time.Second},
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

func (p *Provider) Token(ctx context.Context) (domain.Token, error) {
	cred, err := p.store.LatestCredential(ctx)
	if err != nil {
		return domain.Token{}, err
	}
	if cred.AccessToken != nil && *cred.AccessToken != "" &&
		cred.ExpiresAt != nil && time.Until(*cred.ExpiresAt) > expirySkew {
		return domain.Token{AccessToken: *cred.AccessToken, RefreshToken: cred.RefreshToken}, nil
	}
	return p.refresh(ctx, cred)
}

func (p *Provider) ForceRefresh(ctx context.Context) (domain.Token, error) {
	cred, err := p.store.LatestCredential(ctx)
	if err != nil {
		return domain.Token{}, err
	}
	return p.refresh(ctx, cred)
}

func (p *Provider) refresh(ctx context.Context, cred domain.Credential) (domain.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.RefreshToken},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.hc.Do(req)
	if err != nil {
		return domain.Token{}, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Token{}, fmt.Errorf("token exchange read: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		_ = json.Unmarshal(body, &e)
		if e.Description == "" {
			e.Description = strings.TrimSpace(string(body))
		}
		return domain.Token{}, fmt.Errorf("token exchange rejected (%d): %s", resp.StatusCode, e.Description)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return domain.Token{}, fmt.Errorf("token exchange decode: %w", err)
	}
	if tok.AccessToken == "" {
		return domain.Token{}, fmt.Errorf("token exchange returned empty access_token")
	}

	expiresAt := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if err := p.store.UpdateCredential(ctx, cred.ID, tok.AccessToken, expiresAt); err != nil {
		// Refresh succeeded; a failed persist only costs an extra refresh later.
		log.Warn().Err(err).Msg("persist refreshed token failed")
	}
	return domain.Token{AccessToken: tok.AccessToken, RefreshToken: cred.RefreshToken}, nil
}
