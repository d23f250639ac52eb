package auth

import (
	"context"
)

// Caller returns the authenticated user id and whether that user may act as
// an editor. Anonymous requests yield "" and false.
func Caller(ctx context.Context) (userID string, isEditor bool) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, claims.IsEditor()
}
