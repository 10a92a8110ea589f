package admin

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	repo     *Repository
	sessions *SessionStore
}

func NewService(repo *Repository, sessions *SessionStore) *Service {
	return &Service{repo: repo, sessions: sessions}
}

// Login checks the credentials and opens a session. Wrong username and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	a, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.sessions.Create(ctx, a.Username)
	if err != nil {
		return "", err
	}

	log.Info().Str("admin", a.Username).Msg("admin logged in")
	return token, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

func (s *Service) ValidateSession(ctx context.Context, token string) (string, error) {
	return s.sessions.Validate(ctx, token)
}

func (s *Service) SessionTTL() int {
	return int(s.sessions.TTL().Seconds())
}
