package banks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/maptrack/bank-api/models"
)

// ExpiryMargin is the buffer before actual expiry at which a cached token
// is treated as no longer usable and proactively refreshed.
const ExpiryMargin = 5 * time.Minute

const defaultExpiresIn = 86400 // seconds, when the bank omits expires_in

// TokenManager guarantees a valid client-credentials access token per
// (user, bank), refreshing through the gateway when the cached one is
// absent or about to expire. Refreshes for the same key are collapsed so
// only one upstream exchange is in flight at a time.
type TokenManager struct {
	db           *gorm.DB
	gw           *Gateway
	registry     Registry
	clientID     string
	clientSecret string

	group singleflight.Group

	// Now is the token clock; tests override it.
	Now func() time.Time
}

func NewTokenManager(db *gorm.DB, gw *Gateway, registry Registry, clientID, clientSecret string) *TokenManager {
	return &TokenManager{
		db:           db,
		gw:           gw,
		registry:     registry,
		clientID:     clientID,
		clientSecret: clientSecret,
		Now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// EnsureToken returns a usable access token for (userID, bank). A cached
// token with more than ExpiryMargin left is returned without touching the
// network or the store.
func (m *TokenManager) EnsureToken(ctx context.Context, userID uint, bank string) (string, error) {
	base, err := m.registry.URL(bank)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%d/%s", userID, bank)
	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		// The winning call runs detached from its caller's context so a
		// cancelled winner does not fail every request waiting on the key.
		return m.ensure(context.WithoutCancel(ctx), userID, bank, base)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *TokenManager) ensure(ctx context.Context, userID uint, bank, base string) (string, error) {
	var rec models.BankToken
	res := m.db.WithContext(ctx).
		Where("user_id = ? AND bank_name = ?", userID, bank).
		First(&rec)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return "", res.Error
	}

	if res.Error == nil && rec.ExpiresAt.After(m.Now().Add(ExpiryMargin)) {
		return rec.AccessToken, nil
	}

	params := url.Values{}
	params.Set("client_id", m.clientID)
	params.Set("client_secret", m.clientSecret)

	body, err := m.gw.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    base + "/auth/bank-token",
		Params: params,
	})
	if err != nil {
		return "", tagOp(err, OpToken)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &FormatError{Op: OpToken, Err: err}
	}
	if tr.AccessToken == "" {
		return "", &UpstreamError{Op: OpToken, Status: http.StatusBadGateway, Body: body}
	}

	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	expiresAt := m.Now().Add(time.Duration(expiresIn) * time.Second)

	if rec.ID == 0 {
		rec = models.BankToken{
			UserID:      userID,
			BankName:    bank,
			AccessToken: tr.AccessToken,
			ExpiresAt:   expiresAt,
		}
		if err := m.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return "", err
		}
	} else {
		rec.AccessToken = tr.AccessToken
		rec.ExpiresAt = expiresAt
		if err := m.db.WithContext(ctx).Save(&rec).Error; err != nil {
			return "", err
		}
	}

	zlog.Info().
		Uint("user_id", userID).
		Str("bank", bank).
		Time("expires_at", expiresAt).
		Msg("refreshed bank access token")

	return tr.AccessToken, nil
}
