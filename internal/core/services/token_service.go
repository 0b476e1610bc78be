package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/goalsmith/goalsmith/internal/core/domain"
)

// TokenService issues and validates identity tokens binding a
// (user_id, chat_id) pair. There is no account system behind it, only
// the allow list: identities not on it never get a token.
type TokenService struct {
	secretKey     []byte
	issuer        string
	tokenDuration time.Duration
	allowList     map[int64]bool
}

func NewTokenService(secretKey, issuer string, tokenDuration time.Duration, allowedUserIDs []int64) *TokenService {
	allowList := make(map[int64]bool, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		allowList[id] = true
	}

	return &TokenService{
		secretKey:     []byte(secretKey),
		issuer:        issuer,
		tokenDuration: tokenDuration,
		allowList:     allowList,
	}
}

func (s *TokenService) Allowed(userID int64) bool {
	return s.allowList[userID]
}

func (s *TokenService) GenerateToken(owner domain.Owner) (string, error) {
	if !s.Allowed(owner.UserID) {
		return "", domain.ErrNotOnAllowList
	}

	claims := jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", owner.UserID),
		"chat": fmt.Sprintf("%d", owner.ChatID),
		"exp":  time.Now().Add(s.tokenDuration).Unix(),
		"iat":  time.Now().Unix(),
		"iss":  s.issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("token service: failed to sign token: %w", err)
	}

	return signedToken, nil
}

func (s *TokenService) ValidateToken(tokenString string) (domain.Owner, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return domain.Owner{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return domain.Owner{}, fmt.Errorf("invalid token claims")
	}

	if iss, ok := claims["iss"].(string); !ok || iss != s.issuer {
		return domain.Owner{}, fmt.Errorf("invalid token issuer")
	}

	userID, err := claimInt64(claims, "sub")
	if err != nil {
		return domain.Owner{}, err
	}
	chatID, err := claimInt64(claims, "chat")
	if err != nil {
		return domain.Owner{}, err
	}

	if !s.Allowed(userID) {
		return domain.Owner{}, domain.ErrNotOnAllowList
	}

	return domain.Owner{UserID: userID, ChatID: chatID}, nil
}

func claimInt64(claims jwt.MapClaims, key string) (int64, error) {
	raw, ok := claims[key].(string)
	if !ok {
		return 0, fmt.Errorf("invalid token claim %q", key)
	}

	var value int64
	if _, err := fmt.Sscanf(raw, "%d", &value); err != nil {
		return 0, fmt.Errorf("invalid token claim %q: %w", key, err)
	}
	return value, nil
}
