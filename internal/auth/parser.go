package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gatehouse-analytics/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the normalized view of an access token.
type Claims struct {
	UserID         uuid.UUID
	TenantID       *uuid.UUID
	AllowedTenants []uuid.UUID
	AllowedPages   []string
	Role           model.Role
}

// PageList tolerates the legacy token shape where allowed_pages is a single
// bare string instead of an array; normalization happens here at the auth
// boundary so consuming logic only ever sees a list.
type PageList []string

func (p *PageList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*p = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("allowed_pages: expected string or array")
	}
	if one == "" {
		*p = nil
		return nil
	}
	*p = PageList{one}
	return nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID         string   `json:"user_id"`
	TenantID       string   `json:"tenant_id,omitempty"`
	AllowedTenants []string `json:"allowed_companies,omitempty"`
	AllowedPages   PageList `json:"allowed_pages,omitempty"`
	Role           string   `json:"role"`
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(raw string) (Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	rawUserID := tc.UserID
	if rawUserID == "" {
		rawUserID = tc.Subject
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: user id", ErrInvalidToken)
	}

	claims := Claims{
		UserID:       userID,
		AllowedPages: tc.AllowedPages,
		Role:         model.Role(tc.Role),
	}
	if tc.TenantID != "" {
		if tenantID, err := uuid.Parse(tc.TenantID); err == nil {
			claims.TenantID = &tenantID
		}
	}
	for _, raw := range tc.AllowedTenants {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		claims.AllowedTenants = append(claims.AllowedTenants, id)
	}

	return claims, nil
}
