package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/pkg/apperror"
)

const testBotToken = "123456:TEST-TOKEN"

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) GetOrCreate(ctx context.Context, id int64, username, firstName string, chatID int64) (*models.User, error) {
	args := m.Called(ctx, id, username, firstName, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) Deposit(ctx context.Context, userID int64, amount int64, description string) (*models.Transaction, error) {
	args := m.Called(ctx, userID, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockUserRepo) AdjustBalance(ctx context.Context, userID int64, delta int64, description string) (*models.User, error) {
	args := m.Called(ctx, userID, delta, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) SetWinRate(ctx context.Context, userID int64, winRate float64) error {
	args := m.Called(ctx, userID, winRate)
	return args.Error(0)
}

func (m *mockUserRepo) SetBanned(ctx context.Context, userID int64, banned bool) error {
	args := m.Called(ctx, userID, banned)
	return args.Error(0)
}

func (m *mockUserRepo) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *mockUserRepo) CountUsers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockUserRepo) TotalBalance(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockTransactionReader struct {
	mock.Mock
}

func (m *mockTransactionReader) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Transaction), args.Error(1)
}

// signInitData собирает initData с валидной подписью по схеме Telegram WebApp.
func signInitData(botToken string, fields map[string]string) string {
	pairs := make([]string, 0, len(fields))
	for key, value := range fields {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secretMac := hmac.New(sha256.New, []byte("WebAppData"))
	secretMac.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secretMac.Sum(nil))
	mac.Write([]byte(checkString))

	values := url.Values{}
	for key, value := range fields {
		values.Set(key, value)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func newAuthTestService(repo *mockUserRepo) *AuthService {
	users := NewUserService(repo, new(mockTransactionReader))
	tokens := NewTokenManager("test-secret", time.Hour)
	return NewAuthService(users, tokens, testBotToken)
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := new(mockUserRepo)
	svc := newAuthTestService(repo)
	ctx := context.Background()

	initData := signInitData(testBotToken, map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":42,"username":"player","first_name":"Игрок"}`,
	})

	repo.On("GetOrCreate", ctx, int64(42), "player", "Игрок", int64(42)).
		Return(&models.User{ID: 42, Username: "player", Balance: 1000}, nil)

	res, err := svc.Login(ctx, initData)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), res.User.ID)
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.ExpiresAt.After(time.Now()))

	// Выпущенный токен принимается обратно.
	userID, err := svc.ParseToken(res.Token)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestAuthService_Login_TamperedSignature(t *testing.T) {
	repo := new(mockUserRepo)
	svc := newAuthTestService(repo)

	initData := signInitData(testBotToken, map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":42,"username":"player","first_name":"Игрок"}`,
	})
	// Подмена поля после подписи.
	tampered := strings.Replace(initData, "42", "43", 1)

	_, err := svc.Login(context.Background(), tampered)
	assert.Error(t, err)
	repo.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthService_Login_WrongBotToken(t *testing.T) {
	repo := new(mockUserRepo)
	svc := newAuthTestService(repo)

	initData := signInitData("999:OTHER-TOKEN", map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":42}`,
	})

	_, err := svc.Login(context.Background(), initData)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "подпись")
}

func TestAuthService_Login_StaleAuthDate(t *testing.T) {
	repo := new(mockUserRepo)
	svc := newAuthTestService(repo)

	initData := signInitData(testBotToken, map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Add(-48*time.Hour).Unix(), 10),
		"user":      `{"id":42}`,
	})

	_, err := svc.Login(context.Background(), initData)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "устарели")
}

func TestAuthService_Login_MissingHash(t *testing.T) {
	repo := new(mockUserRepo)
	svc := newAuthTestService(repo)

	_, err := svc.Login(context.Background(), "auth_date=1&user=%7B%22id%22%3A42%7D")
	assert.Error(t, err)
}

func TestAuthService_Login_BannedUser(t *testing.T) {
	repo := new(mockUserRepo)
	svc := newAuthTestService(repo)
	ctx := context.Background()

	initData := signInitData(testBotToken, map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":42,"username":"player"}`,
	})

	repo.On("GetOrCreate", ctx, int64(42), "player", "", int64(42)).
		Return(&models.User{ID: 42, IsBanned: true}, nil)

	_, err := svc.Login(ctx, initData)
	assert.ErrorIs(t, err, apperror.ErrUserBanned)
}

func TestAuthService_ParseToken_Garbage(t *testing.T) {
	svc := newAuthTestService(new(mockUserRepo))

	_, err := svc.ParseToken("не-токен")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tokens := NewTokenManager("secret", time.Hour)

	signed, exp, err := tokens.Generate(777)
	assert.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	userID, err := tokens.Parse(signed)
	assert.NoError(t, err)
	assert.Equal(t, int64(777), userID)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	signed, _, err := NewTokenManager("secret-a", time.Hour).Generate(777)
	assert.NoError(t, err)

	_, err = NewTokenManager("secret-b", time.Hour).Parse(signed)
	assert.Error(t, err)
}

func TestTokenManager_Expired(t *testing.T) {
	signed, _, err := NewTokenManager("secret", -time.Minute).Generate(777)
	assert.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Parse(signed)
	assert.Error(t, err)
}
