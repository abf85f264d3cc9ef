package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"compliance-portal/backend/internal/platform/httpx"
	"compliance-portal/backend/internal/platform/rbac"
	"compliance-portal/backend/internal/security"
)

// extractBearerToken pulls the token out of the Authorization header.
// Returns the token and an error message (empty on success).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// StaffAuth validates the staff JWT and puts the caller on the request
// context. Requests without a valid token get a 401 and never reach the
// handler.
func StaffAuth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: errMsg})
				return
			}

			userID, orgID, role, err := tokens.ValidateAccess(token)
			if err != nil {
				httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "invalid token"})
				return
			}
			uid, err := strconv.ParseInt(userID, 10, 64)
			if err != nil {
				httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "invalid token"})
				return
			}
			oid, err := strconv.ParseInt(orgID, 10, 64)
			if err != nil {
				httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "invalid token"})
				return
			}
			caller := rbac.Caller{UserID: uid, Role: rbac.Role(role), OrgID: oid}
			if !caller.Role.Valid() || caller.Role == rbac.RoleSubmitter {
				httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "invalid token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}
