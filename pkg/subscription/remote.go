package subscription

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RemoteConfig configures a RemoteProvider against an entitlement vendor API.
type RemoteConfig struct {
	Endpoint           string        `env:"ENTITLEMENT_API_ENDPOINT,required"`
	APIKey             string        `env:"ENTITLEMENT_API_KEY,required"`
	InsecureSkipVerify bool          `env:"ENTITLEMENT_API_INSECURE_SKIP_VERIFY" envDefault:"false"`
	Timeout            time.Duration `env:"ENTITLEMENT_API_TIMEOUT" envDefault:"3s"`
	CacheTTL           time.Duration `env:"ENTITLEMENT_API_CACHE_TTL" envDefault:"10m"`
	FlairClass         string        `env:"ENTITLEMENT_API_FLAIR_CLASS" envDefault:"pro-subscriber"`
}

// RemoteProvider resolves subscriptions through a remote entitlement API.
// Responses are remembered in a ResponseCache; with LocalOnly set it answers
// from the local store mirror instead of the network.
type RemoteProvider struct {
	id         string
	cfg        RemoteConfig
	httpClient *http.Client
	respCache  ResponseCache
	local      LocalStore
	log        *slog.Logger
}

// RemoteOption configures a RemoteProvider.
type RemoteOption func(*RemoteProvider)

// WithRemoteHTTPClient overrides the HTTP client, primarily for tests.
func WithRemoteHTTPClient(client *http.Client) RemoteOption {
	return func(p *RemoteProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithRemoteLogger sets the provider logger.
func WithRemoteLogger(log *slog.Logger) RemoteOption {
	return func(p *RemoteProvider) {
		if log != nil {
			p.log = log
		}
	}
}

// NewRemoteProvider creates a provider identified by id in registry
// configuration. respCache and local may be nil; the corresponding tiers are
// then skipped (LocalOnly reads without a local store report a transient
// failure).
func NewRemoteProvider(id string, cfg RemoteConfig, respCache ResponseCache, local LocalStore, opts ...RemoteOption) (*RemoteProvider, error) {
	if cfg.Endpoint == "" {
		return nil, ErrMissingAPIEndpoint
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheDuration
	}

	p := &RemoteProvider{
		id:        id,
		cfg:       cfg,
		respCache: respCache,
		local:     local,
		log:       slog.Default(),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// remoteSubscription is the vendor API response for one account.
type remoteSubscription struct {
	Status         int     `json:"status"`
	PlanID         string  `json:"planId"`
	PlanName       string  `json:"planName"`
	PlanPrice      float64 `json:"planPrice"`
	SubscriptionID string  `json:"subscriptionId"`
	GoodThru       string  `json:"goodThru"`
	PaidThruDate   string  `json:"paidThruDate"`
	ErrorCode      int     `json:"errorCode"`
}

// HasSubscription reports whether the account holds an active subscription.
// Fails closed on any error.
func (p *RemoteProvider) HasSubscription(ctx context.Context, accountID int64) bool {
	rec, err := p.GetSubscription(ctx, accountID)
	return err == nil && rec != nil && rec.Active
}

// GetSubscription resolves the account's subscription through the cache
// tiers and, unless forbidden, the remote API.
func (p *RemoteProvider) GetSubscription(ctx context.Context, accountID int64) (*Record, error) {
	if accountID < 1 {
		return nil, ErrInvalidAccountID
	}

	cc := CacheControlFromContext(ctx)

	if !cc.SkipCache() && p.respCache != nil {
		cached, err := p.respCache.Get(ctx, p.id, accountID)
		if err != nil {
			p.log.WarnContext(ctx, "response cache read failed", "provider", p.id, "error", err)
		} else if cached != nil {
			if cached.Absent {
				return nil, nil
			}
			return cached.Record, nil
		}
	}

	if cc.LocalOnly() {
		if p.local == nil {
			return nil, ErrNoCachedRecord
		}
		rec, err := p.local.Lookup(ctx, accountID, p.id)
		if err != nil {
			if errors.Is(err, ErrNoCachedRecord) {
				return nil, err
			}
			return nil, errors.Join(ErrNoCachedRecord, err)
		}
		return rec, nil
	}

	rec, found, err := p.fetchSubscription(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if p.respCache != nil {
		cached := CachedLookup{Record: rec, Absent: !found}
		if err := p.respCache.Set(ctx, p.id, accountID, cached, p.cfg.CacheTTL); err != nil {
			p.log.WarnContext(ctx, "response cache write failed", "provider", p.id, "error", err)
		}
	}

	if !found {
		return nil, nil
	}
	return rec, nil
}

// fetchSubscription performs the outbound API call. found=false means the
// API confirmed the account has no subscription.
func (p *RemoteProvider) fetchSubscription(ctx context.Context, accountID int64) (rec *Record, found bool, err error) {
	body, status, err := p.post(ctx, "get-user-subscription", strconv.FormatInt(accountID, 10))
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	if status != http.StatusOK {
		return nil, false, errors.Join(ErrProviderUnavailable,
			fmt.Errorf("entitlement API returned status %d", status))
	}

	var remote remoteSubscription
	if err := json.Unmarshal(body, &remote); err != nil {
		return nil, false, errors.Join(ErrProviderUnavailable,
			fmt.Errorf("failed to decode entitlement API response: %w", err))
	}
	if remote.ErrorCode == http.StatusNotFound {
		return nil, false, nil
	}
	if remote.ErrorCode != 0 {
		return nil, false, errors.Join(ErrProviderUnavailable,
			fmt.Errorf("entitlement API error code %d", remote.ErrorCode))
	}

	rec = &Record{
		Active:         remote.Status == 1,
		PlanID:         remote.PlanID,
		PlanName:       remote.PlanName,
		Price:          remote.PlanPrice,
		SubscriptionID: remote.SubscriptionID,
	}

	// The API reports the paid-through date under either field depending on
	// the plan generation.
	expires := remote.GoodThru
	if expires == "" {
		expires = remote.PaidThruDate
	}
	if expires != "" {
		t, err := time.Parse(time.RFC3339, expires)
		if err != nil {
			return nil, false, errors.Join(ErrProviderUnavailable,
				fmt.Errorf("failed to parse expiry %q: %w", expires, err))
		}
		rec.Expires = &t
	}

	return rec, true, nil
}

// CreateCompedSubscription grants a comped subscription through the vendor
// API and drops any cached response for the account.
func (p *RemoteProvider) CreateCompedSubscription(ctx context.Context, accountID int64, months int) error {
	if accountID < 1 {
		return ErrInvalidAccountID
	}
	if months < 1 {
		return ErrInvalidDuration
	}

	_, status, err := p.post(ctx, "create-comped-subscription",
		strconv.FormatInt(accountID, 10), strconv.Itoa(months))
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.Join(ErrProviderUnavailable,
			fmt.Errorf("entitlement API returned status %d", status))
	}

	p.invalidate(ctx, accountID)
	return nil
}

// CancelCompedSubscription revokes a comped subscription through the vendor
// API and drops any cached response for the account.
func (p *RemoteProvider) CancelCompedSubscription(ctx context.Context, accountID int64) error {
	if accountID < 1 {
		return ErrInvalidAccountID
	}

	_, status, err := p.post(ctx, "cancel-comped-subscription", strconv.FormatInt(accountID, 10))
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.Join(ErrProviderUnavailable,
			fmt.Errorf("entitlement API returned status %d", status))
	}

	p.invalidate(ctx, accountID)
	return nil
}

// FlairClass returns the configured cosmetic marker.
func (p *RemoteProvider) FlairClass() string {
	return p.cfg.FlairClass
}

// CacheDuration returns the configured response cache TTL.
func (p *RemoteProvider) CacheDuration() time.Duration {
	return p.cfg.CacheTTL
}

func (p *RemoteProvider) post(ctx context.Context, pieces ...string) (body []byte, status int, err error) {
	url := strings.TrimSuffix(p.cfg.Endpoint, "/") + "/" + strings.Join(pieces, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, 0, errors.Join(ErrProviderUnavailable, err)
	}
	req.Header.Set("X-Api-Key", p.cfg.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Join(ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, errors.Join(ErrProviderUnavailable, err)
	}
	return body, resp.StatusCode, nil
}

func (p *RemoteProvider) invalidate(ctx context.Context, accountID int64) {
	if p.respCache == nil {
		return
	}
	if err := p.respCache.Delete(ctx, p.id, accountID); err != nil {
		p.log.WarnContext(ctx, "response cache invalidation failed", "provider", p.id, "error", err)
	}
}
