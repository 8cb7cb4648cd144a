package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/puzzle-health/tracker/internal/shared/config"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// Role represents a tenant role in the care network.
type Role string

const (
	RoleHealthSystem Role = "health_system" // scoped to one organization
	RoleSnfChain     Role = "snf_chain"     // scoped to one SNF chain
	RoleSnfFacility  Role = "snf_facility"  // scoped to one facility
	RoleCareTeam     Role = "care_team"     // central team, unscoped
)

// Valid reports whether the role is one of the known tenant roles.
func (r Role) Valid() bool {
	switch r {
	case RoleHealthSystem, RoleSnfChain, RoleSnfFacility, RoleCareTeam:
		return true
	}
	return false
}

// User represents the authenticated caller from JWT claims. The tenant scope
// fields are authenticated claims issued by the identity provider, never
// caller-supplied parameters.
type User struct {
	ID         types.ID `json:"sub"`
	Role       Role     `json:"role"`
	OrgID      types.ID `json:"org_id"`
	ChainID    types.ID `json:"chain_id"`
	FacilityID types.ID `json:"facility_id"`
}

// Claims extends JWT claims with tracker-specific tenant data
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	OrgID      string `json:"org_id,omitempty"`
	ChainID    string `json:"chain_id,omitempty"`
	FacilityID string `json:"facility_id,omitempty"`
}

// Middleware creates JWT authentication middleware
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := parts[1]

			token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
				// Symmetric key for development; swap for the IdP's
				// public key in production
				return []byte(cfg.JWTSecret), nil
			})

			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			if !Role(claims.Role).Valid() {
				writeError(w, http.StatusUnauthorized, "unknown role claim")
				return
			}

			user := &User{
				ID:         types.ID(claims.Subject),
				Role:       Role(claims.Role),
				OrgID:      types.ID(claims.OrgID),
				ChainID:    types.ID(claims.ChainID),
				FacilityID: types.ID(claims.FacilityID),
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser extracts the user from request context
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// CoversOrg reports whether the user's authorized scope includes the organization.
func (u *User) CoversOrg(orgID types.ID) bool {
	if u.Role == RoleCareTeam {
		return true
	}
	return u.Role == RoleHealthSystem && u.OrgID == orgID
}

// CoversChain reports whether the user's authorized scope includes the chain.
func (u *User) CoversChain(chainID types.ID) bool {
	if u.Role == RoleCareTeam {
		return true
	}
	return u.Role == RoleSnfChain && u.ChainID == chainID
}

// CoversFacility reports whether the user's authorized scope includes the
// facility. Facility scope never widens to sibling facilities; org and chain
// coverage is decided by the resolver, which knows the facility's parents.
func (u *User) CoversFacility(facilityID types.ID) bool {
	if u.Role == RoleCareTeam {
		return true
	}
	return u.Role == RoleSnfFacility && u.FacilityID == facilityID
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
