package user

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
)

// Service defines the interface for user-related business logic.
type Service interface {
	EnsureWalletUser(ctx context.Context, wallet common.Address) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, id string, req UpdateRequest) (*User, error)
}

type service struct {
	repo     Repository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a new user service.
func NewService(repo Repository, logger *zap.Logger) Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &service{repo: repo, validate: v, logger: logger}
}

func (s *service) EnsureWalletUser(ctx context.Context, wallet common.Address) (*User, error) {
	u, err := s.repo.UpsertByWallet(ctx, wallet.Hex())
	if err != nil {
		return nil, fmt.Errorf("upsert user for %s: %w", wallet.Hex(), err)
	}
	return u, nil
}

func (s *service) GetUser(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.ValidationField("id", "id must be a UUID")
	}
	u, err := s.repo.GetUserByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

func (s *service) UpdateUser(ctx context.Context, id string, req UpdateRequest) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Image != nil {
		u.Image = *req.Image
	}
	if err := s.repo.UpdateProfile(ctx, u); err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	s.logger.Info("user profile updated", zap.String("user_id", id))
	return u, nil
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.ValidationField("body", err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fmt.Sprintf("%s failed the %s check", fe.Field(), fe.Tag())
	}
	return apperr.Validation(fields)
}
