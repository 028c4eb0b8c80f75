package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/pkg/apperror"
)

// initDataMaxAge — максимальный возраст initData: старые подписи не принимаем.
const initDataMaxAge = 24 * time.Hour

// AuthService проверяет подпись Telegram WebApp initData и выпускает
// сессионные токены мини-приложения.
type AuthService struct {
	users    *UserService
	tokens   *TokenManager
	botToken string
}

// NewAuthService создаёт сервис авторизации.
func NewAuthService(users *UserService, tokens *TokenManager, botToken string) *AuthService {
	return &AuthService{users: users, tokens: tokens, botToken: botToken}
}

// AuthResult — результат входа: игрок и сессионный токен.
type AuthResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type webAppUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Login проверяет initData, создаёт игрока при первом входе и выпускает токен.
func (s *AuthService) Login(ctx context.Context, initData string) (*AuthResult, error) {
	tgUser, err := s.validateInitData(initData)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetOrCreate(ctx, tgUser.ID, tgUser.Username, tgUser.FirstName, tgUser.ID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, apperror.ErrUserBanned
	}

	token, exp, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка")
	}

	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// validateInitData проверяет подпись initData по схеме Telegram:
// секрет — HMAC-SHA256 от токена бота с ключом "WebAppData", подпись —
// HMAC-SHA256 от отсортированной строки key=value.
func (s *AuthService) validateInitData(initData string) (*webAppUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "некорректные данные авторизации")
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "некорректные данные авторизации")
	}
	values.Del("hash")

	pairs := make([]string, 0, len(values))
	for key := range values {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, values.Get(key)))
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secretMac := hmac.New(sha256.New, []byte("WebAppData"))
	secretMac.Write([]byte(s.botToken))
	secret := secretMac.Sum(nil)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(checkString))
	wantHash := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(gotHash), []byte(wantHash)) {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "подпись не прошла проверку")
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil || time.Since(time.Unix(authDate, 0)) > initDataMaxAge {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "данные авторизации устарели")
	}

	var tgUser webAppUser
	if err := json.Unmarshal([]byte(values.Get("user")), &tgUser); err != nil || tgUser.ID == 0 {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "некорректные данные авторизации")
	}

	return &tgUser, nil
}

// ParseToken проверяет сессионный токен и возвращает ID игрока.
func (s *AuthService) ParseToken(token string) (int64, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return 0, apperror.ErrUnauthorized
	}
	return userID, nil
}
