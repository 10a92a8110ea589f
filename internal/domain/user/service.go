package user

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tgmarket/market-api/internal/pkg/jwt"
	"github.com/tgmarket/market-api/internal/pkg/telegram"
)

const initDataMaxAge = 24 * time.Hour

// ReferralRecorder records a referral-link click. Optional collaborator.
type ReferralRecorder interface {
	Record(ctx context.Context, referrerID, referredID int64) error
}

type Service struct {
	repo      *Repository
	jwtSvc    *jwt.Service
	botToken  string
	referrals ReferralRecorder
}

func NewService(repo *Repository, jwtSvc *jwt.Service, botToken string, referrals ReferralRecorder) *Service {
	return &Service{repo: repo, jwtSvc: jwtSvc, botToken: botToken, referrals: referrals}
}

// AuthResult is the outcome of a successful mini-app login
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Authenticate verifies Mini App initData, upserts the account and issues a
// session token. A "ref_<id>" start param records a referral click.
func (s *Service) Authenticate(ctx context.Context, initData string) (*AuthResult, error) {
	data, err := telegram.VerifyInitData(initData, s.botToken, initDataMaxAge)
	if err != nil {
		return nil, ErrInvalidAuth
	}

	u, err := s.repo.Upsert(ctx, data.User.ID, data.User.Username, data.User.FirstName)
	if err != nil {
		return nil, err
	}

	if s.referrals != nil {
		if referrerID, ok := parseReferralParam(data.StartParam); ok && referrerID != u.TelegramID {
			if err := s.referrals.Record(ctx, referrerID, u.TelegramID); err != nil {
				log.Warn().Err(err).Int64("referrer", referrerID).Int64("referred", u.TelegramID).Msg("failed to record referral click")
			}
		}
	}

	token, err := s.jwtSvc.GenerateToken(u.TelegramID, u.PublicUsername())
	if err != nil {
		return nil, err
	}

	return &AuthResult{Token: token, User: u}, nil
}

func (s *Service) GetProfile(ctx context.Context, telegramID int64) (*User, error) {
	return s.repo.GetByTelegramID(ctx, telegramID)
}

func parseReferralParam(startParam string) (int64, bool) {
	raw, ok := strings.CutPrefix(startParam, "ref_")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
