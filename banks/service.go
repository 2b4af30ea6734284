package banks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"gorm.io/gorm"
)

// Config is the immutable wiring for the aggregation core. Credentials
// identify this system towards the banks, never the end user.
type Config struct {
	DB           *gorm.DB
	Registry     Registry
	ClientID     string
	ClientSecret string
	AppName      string
	Timeout      time.Duration
	InsecureTLS  bool
}

// Service is the top-level aggregation operation: token, then consent,
// then the bank's accounts endpoint.
type Service struct {
	Tokens   *TokenManager
	Consents *ConsentOrchestrator

	gw       *Gateway
	registry Registry
	clientID string
}

func NewService(cfg Config) *Service {
	gw := NewGateway(cfg.Timeout, cfg.InsecureTLS)
	return &Service{
		Tokens:   NewTokenManager(cfg.DB, gw, cfg.Registry, cfg.ClientID, cfg.ClientSecret),
		Consents: NewConsentOrchestrator(cfg.DB, gw, cfg.Registry, cfg.ClientID, cfg.AppName),
		gw:       gw,
		registry: cfg.Registry,
		clientID: cfg.ClientID,
	}
}

// AccountsResult carries either the provider's account list verbatim or a
// pending notice with the consent's current status.
type AccountsResult struct {
	Accounts json.RawMessage
	Pending  bool
	Status   string
}

// GetAccounts obtains a token and a consent, then fetches the account
// list. A consent that is not approved yet yields a pending result, not
// an error.
func (s *Service) GetAccounts(ctx context.Context, userID uint, bank string) (AccountsResult, error) {
	base, err := s.registry.URL(bank)
	if err != nil {
		return AccountsResult{}, err
	}

	token, err := s.Tokens.EnsureToken(ctx, userID, bank)
	if err != nil {
		return AccountsResult{}, err
	}

	consent, err := s.Consents.EnsureConsent(ctx, userID, bank, token)
	if err != nil {
		return AccountsResult{}, err
	}
	if consent.Pending {
		return AccountsResult{Pending: true, Status: consent.Status}, nil
	}

	params := url.Values{}
	params.Set("client_id", scopedClientID(s.clientID, userID))

	body, err := s.gw.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    base + "/accounts",
		Headers: map[string]string{
			"Authorization":     "Bearer " + token,
			"X-Requesting-Bank": s.clientID,
			"X-Consent-Id":      consent.ConsentID,
		},
		Params: params,
	})
	if err != nil {
		return AccountsResult{}, tagOp(err, OpAccounts)
	}

	return AccountsResult{Accounts: body}, nil
}

// ConsentStatus relays the bank's consent-status payload verbatim. The
// record itself is not touched; EnsureConsent owns the lifecycle.
func (s *Service) ConsentStatus(ctx context.Context, userID uint, bank, consentID string) (json.RawMessage, error) {
	base, err := s.registry.URL(bank)
	if err != nil {
		return nil, err
	}

	token, err := s.Tokens.EnsureToken(ctx, userID, bank)
	if err != nil {
		return nil, err
	}

	body, err := s.gw.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    base + "/account-consents/" + consentID,
		Headers: map[string]string{
			"Authorization":     "Bearer " + token,
			"X-Requesting-Bank": s.clientID,
		},
	})
	if err != nil {
		return nil, tagOp(err, OpConsent)
	}

	return body, nil
}
