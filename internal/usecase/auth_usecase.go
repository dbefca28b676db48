package usecase

import (
	"app/internal/config"
	"app/internal/domain/model"
	repo "app/internal/repository"

	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// accesstokenの有効期限
const accessTokenTTL = 15 * time.Minute

type UserDTO struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	IsActive     bool   `json:"is_active"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResponse struct {
	User        UserDTO `json:"user"`
	AccessToken string  `json:"access_token"`
	ExpiresIn   int     `json:"expires_in"`
}

type AuthUsecase struct {
	cfg   config.Config
	users repo.UserRepository
}

func NewAuthUsecase(cfg config.Config, users repo.UserRepository) *AuthUsecase {
	return &AuthUsecase{cfg: cfg, users: users}
}

func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest) (AuthLoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return AuthLoginResponse{}, NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	//ユーザー取得
	user, err := u.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, repo.ErrUserNotFound) || user == nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return AuthLoginResponse{}, NewHTTPError(http.StatusForbidden, "account disabled")
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	//last_login更新（失敗してもログインは通す）
	_ = u.users.UpdateLastLogin(ctx, user.ID)

	accessToken, expiresIn, err := u.issueAccessToken(user)
	if err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusInternalServerError, "token error")
	}

	return AuthLoginResponse{
		User:        toUserDTO(user),
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	}, nil
}

func (u *AuthUsecase) Me(ctx context.Context, userID int64) (UserDTO, error) {
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrUserNotFound) || user == nil {
		return UserDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err != nil {
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return toUserDTO(user), nil
}

func (u *AuthUsecase) issueAccessToken(user *model.User) (string, int, error) {
	now := time.Now()
	exp := now.Add(accessTokenTTL)

	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := t.SignedString([]byte(u.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}

	return signed, int(accessTokenTTL.Seconds()), nil
}

func toUserDTO(user *model.User) UserDTO {
	return UserDTO{
		ID:           user.ID,
		Email:        user.Email,
		Role:         string(user.Role),
		TokenVersion: user.TokenVersion,
		IsActive:     user.IsActive,
	}
}
