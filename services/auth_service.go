package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"fmt"
	"time"
)

type IAuthService interface {
	Login(username, password string) (Token, error)
	Register(username, password string) (Token, error)
	ValidateCredential(ctx context.Context, token string) (domain.Identity, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokenManager   *auth.TokenManager
	tokenDuration  time.Duration
}

type Token string

func NewAuthService(repo repositories.IUserRepository, tokenManager *auth.TokenManager, tokenDuration time.Duration) *AuthService {
	return &AuthService{userRepository: repo, tokenManager: tokenManager, tokenDuration: tokenDuration}
}

func (s *AuthService) Register(username, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Password: password,
	}

	// Checked before any expensive cryptographic operation
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// The repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	if _, err = s.userRepository.CreateUser(username, hashedPassword); err != nil {
		return "", err
	}

	token, err := s.tokenManager.GenerateToken(username, []string{"user"}, s.tokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(username, password string) (Token, error) {
	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokenManager.GenerateToken(user.Username, []string{"user"}, s.tokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// ValidateCredential checks the token then resolves its subject to a stored user.
func (s *AuthService) ValidateCredential(_ context.Context, token string) (domain.Identity, error) {
	claims, err := s.tokenManager.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, err
	}
	user, err := s.userRepository.GetUserByUsername(claims.Subject)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: user.ID, DisplayName: user.Username}, nil
}
