package banks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/maptrack/bank-api/models"
)

// consentPermissions is the fixed permission set requested from every bank.
var consentPermissions = []string{"ReadAccountsDetail", "ReadBalances"}

const consentReason = "Account aggregation for MapTrack"

// ConsentResult is either a usable consent id, or a pending notice with
// the bank's last reported status. Pending is a normal outcome, not an
// error: the bank simply has not seen the user approve yet.
type ConsentResult struct {
	ConsentID string
	Pending   bool
	Status    string
}

// ConsentOrchestrator drives a consent record through its lifecycle:
// absent -> requested (pending or approved) -> approved. A bank-side
// rejection is reported as pending and is never retried automatically.
type ConsentOrchestrator struct {
	db       *gorm.DB
	gw       *Gateway
	registry Registry
	clientID string
	appName  string
}

func NewConsentOrchestrator(db *gorm.DB, gw *Gateway, registry Registry, clientID, appName string) *ConsentOrchestrator {
	return &ConsentOrchestrator{
		db:       db,
		gw:       gw,
		registry: registry,
		clientID: clientID,
		appName:  appName,
	}
}

type consentResponse struct {
	ConsentID string `json:"consent_id"`
	Status    string `json:"status"`
}

// consentStatusResponse accepts both the nested {"data": {...}} payload
// and the flat variant some providers return.
type consentStatusResponse struct {
	Data struct {
		Status    string `json:"status"`
		ConsentID string `json:"consentId"`
	} `json:"data"`
	Status    string `json:"status"`
	ConsentID string `json:"consentId"`
}

func (r *consentStatusResponse) status() string {
	if r.Data.Status != "" {
		return r.Data.Status
	}
	return r.Status
}

func (r *consentStatusResponse) consentID() string {
	if r.Data.ConsentID != "" {
		return r.Data.ConsentID
	}
	return r.ConsentID
}

// EnsureConsent returns the stored consent id when it is approved,
// otherwise advances the lifecycle by one step: request a new consent when
// none exists, or poll the bank's status endpoint when one is pending.
// Safe to call arbitrarily often.
func (o *ConsentOrchestrator) EnsureConsent(ctx context.Context, userID uint, bank, token string) (ConsentResult, error) {
	base, err := o.registry.URL(bank)
	if err != nil {
		return ConsentResult{}, err
	}

	var rec models.BankConsent
	res := o.db.WithContext(ctx).
		Where("user_id = ? AND bank_name = ?", userID, bank).
		First(&rec)
	if res.Error != nil {
		if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return ConsentResult{}, res.Error
		}
		return o.request(ctx, userID, bank, base, token)
	}

	if rec.ConsentID != models.ConsentPendingID && rec.Status == models.ConsentApproved {
		return ConsentResult{ConsentID: rec.ConsentID}, nil
	}

	return o.poll(ctx, base, token, &rec)
}

func (o *ConsentOrchestrator) request(ctx context.Context, userID uint, bank, base, token string) (ConsentResult, error) {
	body, err := o.gw.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    base + "/account-consents/request",
		Headers: map[string]string{
			"Authorization":     "Bearer " + token,
			"X-Requesting-Bank": o.clientID,
		},
		Body: map[string]any{
			"client_id":            scopedClientID(o.clientID, userID),
			"permissions":          consentPermissions,
			"reason":               consentReason,
			"requesting_bank":      o.clientID,
			"requesting_bank_name": o.appName,
		},
	})
	if err != nil {
		return ConsentResult{}, tagOp(err, OpConsent)
	}

	var cr consentResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return ConsentResult{}, &FormatError{Op: OpConsent, Err: err}
	}

	consentID := cr.ConsentID
	if consentID == "" {
		consentID = models.ConsentPendingID
	}
	status := cr.Status
	if status == "" {
		status = "unknown"
	}

	rec := models.BankConsent{
		UserID:    userID,
		BankName:  bank,
		ConsentID: consentID,
		ClientID:  scopedClientID(o.clientID, userID),
		Status:    status,
	}
	if err := o.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return ConsentResult{}, err
	}

	zlog.Info().
		Uint("user_id", userID).
		Str("bank", bank).
		Str("status", status).
		Msg("requested bank consent")

	if cr.ConsentID != "" && status == models.ConsentApproved {
		return ConsentResult{ConsentID: cr.ConsentID}, nil
	}
	return ConsentResult{Pending: true, Status: status}, nil
}

func (o *ConsentOrchestrator) poll(ctx context.Context, base, token string, rec *models.BankConsent) (ConsentResult, error) {
	body, err := o.gw.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    base + "/account-consents/" + rec.ConsentID,
		Headers: map[string]string{
			"Authorization":     "Bearer " + token,
			"X-Requesting-Bank": o.clientID,
		},
	})
	if err != nil {
		return ConsentResult{}, tagOp(err, OpConsent)
	}

	var sr consentStatusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return ConsentResult{}, &FormatError{Op: OpConsent, Err: err}
	}

	if sr.status() != models.ConsentApproved {
		return ConsentResult{Pending: true, Status: sr.status()}, nil
	}

	consentID := sr.consentID()
	if consentID == "" {
		if rec.ConsentID == models.ConsentPendingID {
			// Approved but the bank never told us the real id; without it
			// there is nothing to send in X-Consent-Id, so stay pending.
			return ConsentResult{Pending: true, Status: sr.status()}, nil
		}
		consentID = rec.ConsentID
	}

	rec.Status = models.ConsentApproved
	rec.ConsentID = consentID
	if err := o.db.WithContext(ctx).Save(rec).Error; err != nil {
		return ConsentResult{}, err
	}

	zlog.Info().
		Uint("user_id", rec.UserID).
		Str("bank", rec.BankName).
		Str("consent_id", consentID).
		Msg("bank consent approved")

	return ConsentResult{ConsentID: consentID}, nil
}

func scopedClientID(clientID string, userID uint) string {
	return fmt.Sprintf("%s-%d", clientID, userID)
}
