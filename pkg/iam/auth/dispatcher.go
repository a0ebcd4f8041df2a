package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/secufusion/iamplane/pkg/asyncx"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/logx"
	"github.com/secufusion/iamplane/pkg/metricx"
)

const reloadConcurrency = 8

// Dispatcher picks the verifier for a token by its issuer. The index holds
// one verifier per issuer URI known to the config store.
type Dispatcher struct {
	configs authconfig.Repository
	http    *resty.Client

	mu       sync.RWMutex
	byIssuer map[string]*Verifier
}

func NewDispatcher(configs authconfig.Repository, client *resty.Client) *Dispatcher {
	if client == nil {
		client = resty.New()
	}
	return &Dispatcher{
		configs:  configs,
		http:     client,
		byIssuer: make(map[string]*Verifier),
	}
}

// Reload rebuilds the whole index from the config store. Configs whose key
// set cannot be loaded are left out; for duplicate issuers the last config
// listed wins.
func (d *Dispatcher) Reload(ctx context.Context) error {
	cfgs, err := d.configs.List(ctx)
	if err != nil {
		return err
	}

	settled := asyncx.MapSettled(ctx, cfgs, reloadConcurrency, func(ctx context.Context, cfg *authconfig.Config) (*Verifier, error) {
		return NewVerifier(ctx, cfg, d.http)
	})

	index := make(map[string]*Verifier, len(cfgs))
	for i, r := range settled {
		if !r.OK() {
			logx.WithContext(ctx).WithError(r.Err).WithFields(logx.Fields{
				"tenant_id": cfgs[i].TenantID,
				"issuer":    cfgs[i].IssuerURI,
			}).Warn("⚠️  Skipping issuer, verifier could not be built")
			continue
		}
		index[r.Value.Issuer()] = r.Value
	}

	d.mu.Lock()
	d.byIssuer = index
	d.mu.Unlock()

	logx.WithContext(ctx).WithField("issuers", len(index)).Info("🔑 Verifier index loaded")
	return nil
}

// Register adds or replaces the verifier for cfg's issuer.
func (d *Dispatcher) Register(ctx context.Context, cfg *authconfig.Config) error {
	v, err := NewVerifier(ctx, cfg, d.http)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.byIssuer[v.Issuer()] = v
	d.mu.Unlock()
	return nil
}

func (d *Dispatcher) Unregister(issuer string) {
	d.mu.Lock()
	delete(d.byIssuer, issuer)
	d.mu.Unlock()
}

// Issuers lists the indexed issuer URIs.
func (d *Dispatcher) Issuers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.byIssuer))
	for iss := range d.byIssuer {
		out = append(out, iss)
	}
	return out
}

// Resolve returns the verifier bound to the token's iss claim. Malformed
// tokens and unknown issuers resolve to nothing.
func (d *Dispatcher) Resolve(token string) (*Verifier, bool) {
	iss, ok := IssuerOf(token)
	if !ok {
		metricx.ObserveDispatch(metricx.DispatchMalformed)
		return nil, false
	}

	d.mu.RLock()
	v, ok := d.byIssuer[iss]
	d.mu.RUnlock()
	if !ok {
		metricx.ObserveDispatch(metricx.DispatchUnknown)
		return nil, false
	}
	metricx.ObserveDispatch(metricx.DispatchMatched)
	return v, true
}

// IssuerOf reads iss from the unverified payload of a compact JWS. Padded
// and unpadded Base64URL are both accepted.
func IssuerOf(token string) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] == "" {
		return "", false
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return "", false
	}

	var claims struct {
		Issuer any `json:"iss"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", false
	}
	iss, ok := claims.Issuer.(string)
	if !ok || iss == "" {
		return "", false
	}
	return iss, true
}
