package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
)

// minRefetchInterval limits JWKS reloads triggered by unknown key ids.
const minRefetchInterval = time.Minute

// Error types for token verification.
var (
	ErrMissingToken = apperr.Unauthorized("Missing authentication token")
	ErrInvalidToken = apperr.Unauthorized("Invalid or expired token")
)

// Identity is the verified caller.
type Identity struct {
	Sub      string
	Email    string
	Username string
}

// Claims are the Cognito ID token claims read here.
type Claims struct {
	Email           string `json:"email"`
	TokenUse        string `json:"token_use"`
	CognitoUsername string `json:"cognito:username"`
	jwt.RegisteredClaims
}

// Verifier checks Cognito ID tokens against the pool's published signing keys.
type Verifier struct {
	issuer   string
	clientID string
	jwksURL  string
	client   *http.Client
	now      func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewVerifier creates a Verifier for the user pool in region.
func NewVerifier(region, userPoolID, clientID string) *Verifier {
	issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
	return NewVerifierWithJWKS(issuer, issuer+"/.well-known/jwks.json", clientID, &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

// NewVerifierWithJWKS creates a Verifier with an explicit issuer and key set location.
func NewVerifierWithJWKS(issuer, jwksURL, clientID string, client *http.Client) *Verifier {
	return &Verifier{
		issuer:   issuer,
		clientID: clientID,
		jwksURL:  jwksURL,
		client:   client,
		now:      time.Now,
		keys:     map[string]*rsa.PublicKey{},
	}
}

// Verify validates an ID token and returns the caller it names.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, apperr.Wrap(ErrInvalidToken, err)
	}
	if !token.Valid || claims.TokenUse != "id" || claims.Subject == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{
		Sub:      claims.Subject,
		Email:    textnorm.NormalizeEmail(claims.Email),
		Username: claims.CognitoUsername,
	}, nil
}

// key returns the signing key for kid, reloading the key set once when kid is unknown.
func (v *Verifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	stale := v.now().Sub(v.fetchedAt) >= minRefetchInterval
	v.mu.RUnlock()
	if ok {
		return key, nil
	}
	if !stale {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}

	if err := v.refresh(ctx); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("unknown signing key %q", kid)
}

type jwks struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (v *Verifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		key, err := rsaKey(k.N, k.E)
		if err != nil {
			return fmt.Errorf("parse jwk %s: %w", k.Kid, err)
		}
		keys[k.Kid] = key
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = v.now()
	v.mu.Unlock()
	return nil
}

func rsaKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
