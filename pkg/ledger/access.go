package ledger

import (
	"time"

	"github.com/afritokeni/platform/pkg/errs"
	"github.com/golang-jwt/jwt/v5"
)

// Tier is one of the three access tiers a mutating C1 call may require
// (spec §4.1 "Access control (3 tiers)").
type Tier int

const (
	// TierController is the platform admin: manages the authorized-caller list.
	TierController Tier = iota
	// TierAuthorizedCaller is a fixed allow-list of service principals (C2-C6/C10).
	TierAuthorizedCaller
	// TierUserSelf is a user reading/mutating only its own profile/balances.
	TierUserSelf
)

type serviceClaims struct {
	Principal string `json:"principal"`
	Role      string `json:"role"` // "controller" or "service"
	jwt.RegisteredClaims
}

// IssueServiceToken mints a platform-signed HS256 token naming principal,
// used by every in-process service (C2-C6/C10) to authenticate its calls
// into Store. Grounded on virtengine-virtengine's golang-jwt/jwt/v5 bearer
// token middleware, adapted from an HTTP auth boundary to an in-process
// service boundary.
func IssueServiceToken(secret, principal, role string) (string, error) {
	claims := serviceClaims{
		Principal: principal,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// verifyCaller parses token and checks it satisfies tierRequired. It never
// reads state before a tier failure (spec: "failure returns Unauthorized
// with no state read").
func (s *Store) verifyCaller(token string, tierRequired Tier) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &serviceClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !parsed.Valid {
		return "", errs.Forbidden("invalid caller token")
	}
	claims, ok := parsed.Claims.(*serviceClaims)
	if !ok {
		return "", errs.Forbidden("invalid caller token")
	}

	switch tierRequired {
	case TierController:
		if claims.Role != "controller" {
			return "", errs.Forbidden("controller access required")
		}
	case TierAuthorizedCaller:
		if claims.Role != "controller" {
			s.mu.RLock()
			_, ok := s.authorizedCallers[claims.Principal]
			s.mu.RUnlock()
			if !ok {
				return "", errs.Forbidden("caller not authorized")
			}
		}
	case TierUserSelf:
		// User-self calls are authenticated by PIN at the service layer
		// (C2.verify_pin); any valid, unexpired service token is sufficient
		// here to prove the call came from a platform service.
	}

	return claims.Principal, nil
}

// AddAuthorizedCaller adds principal to the allow-list (controller-only).
func (s *Store) AddAuthorizedCaller(callerToken, principal string) error {
	if _, err := s.verifyCaller(callerToken, TierController); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO authorized_callers (principal) VALUES (?)`, principal); err != nil {
		return errs.New(errs.Internal, "failed to add authorized caller")
	}
	s.authorizedCallers[principal] = true
	return nil
}

// RemoveAuthorizedCaller removes principal from the allow-list (controller-only).
func (s *Store) RemoveAuthorizedCaller(callerToken, principal string) error {
	if _, err := s.verifyCaller(callerToken, TierController); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM authorized_callers WHERE principal = ?`, principal); err != nil {
		return errs.New(errs.Internal, "failed to remove authorized caller")
	}
	delete(s.authorizedCallers, principal)
	return nil
}

// ListAuthorizedCallers returns the current allow-list (controller-only).
func (s *Store) ListAuthorizedCallers(callerToken string) ([]string, error) {
	if _, err := s.verifyCaller(callerToken, TierController); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.authorizedCallers))
	for p := range s.authorizedCallers {
		out = append(out, p)
	}
	return out, nil
}
