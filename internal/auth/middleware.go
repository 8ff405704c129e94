/*
 * This file is part of MME (https://github.com/Sahilpatil2001/mme-fastapi).
 * Copyright (C) 2025 Sahil Patil
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

// UserLookup resolves a token subject to a stored user
type UserLookup interface {
	GetByUID(uid string) (*storage.User, error)
}

type contextKey struct{}

// WithUser attaches user to ctx
func WithUser(ctx context.Context, user *storage.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated user, if any
func UserFromContext(ctx context.Context) (*storage.User, bool) {
	user, ok := ctx.Value(contextKey{}).(*storage.User)
	return user, ok && user != nil
}

// Middleware requires a valid bearer token on every path except the public
// ones and CORS preflights
func Middleware(issuer *TokenIssuer, users UserLookup, publicPaths ...string) func(http.Handler) http.Handler {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || public[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				writeDetail(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
				return
			}

			claims, err := issuer.Parse(strings.TrimSpace(token))
			if err != nil {
				logging.LogWarn("Rejected session token",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeDetail(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			user, err := users.GetByUID(claims.ID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					writeDetail(w, http.StatusNotFound, "User not found")
					return
				}
				logging.LogError(err, "Failed to load user for token", zap.String("uid", claims.ID))
				writeDetail(w, http.StatusInternalServerError, "Server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
