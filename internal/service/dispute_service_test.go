package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rias-glitch/casino-backend/internal/logger"
	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/pkg/apperror"
	"github.com/rias-glitch/casino-backend/internal/random"
	"github.com/rias-glitch/casino-backend/internal/repository"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListActiveVotings(ctx context.Context) ([]models.Dispute, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListExpiredVotings(ctx context.Context) ([]models.Dispute, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) UpdateMessageRef(ctx context.Context, id uuid.UUID, chatID int64, messageID int) error {
	args := m.Called(ctx, id, chatID, messageID)
	return args.Error(0)
}

func (m *mockDisputeRepo) Accept(ctx context.Context, id uuid.UUID, opponent *models.User) (*models.Dispute, error) {
	args := m.Called(ctx, id, opponent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) Settle(ctx context.Context, id uuid.UUID, fromStatus string, result *string, winnerID int64, commission, payout int64) (*models.Dispute, error) {
	args := m.Called(ctx, id, fromStatus, result, winnerID, commission, payout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) SettleDraw(ctx context.Context, id uuid.UUID, fromStatus string) (*models.Dispute, error) {
	args := m.Called(ctx, id, fromStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) UpdateStatusFrom(ctx context.Context, id uuid.UUID, fromStatus, toStatus string) (*models.Dispute, error) {
	args := m.Called(ctx, id, fromStatus, toStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) SetReadiness(ctx context.Context, id uuid.UUID, role string, ready bool) (*models.Dispute, error) {
	args := m.Called(ctx, id, role, ready)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) SetChoice(ctx context.Context, id uuid.UUID, role string, choice bool) (*models.Dispute, error) {
	args := m.Called(ctx, id, role, choice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) StartVoting(ctx context.Context, id uuid.UUID, deadline time.Time) (*models.Dispute, error) {
	args := m.Called(ctx, id, deadline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) AddVote(ctx context.Context, vote *models.DisputeVote) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func (m *mockDisputeRepo) CountVotes(ctx context.Context, id uuid.UUID, creatorID, opponentID int64) (*models.VoteCount, error) {
	args := m.Called(ctx, id, creatorID, opponentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VoteCount), args.Error(1)
}

type mockUserReader struct {
	mock.Mock
}

func (m *mockUserReader) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// recordingNotifier запоминает доставленные события.
type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ int64, event string, _ interface{}) error {
	n.events = append(n.events, event)
	return nil
}

func newTestService(disputes *mockDisputeRepo, users *mockUserReader) *DisputeService {
	return NewDisputeService(disputes, users, random.NewSeededSource(1), &recordingNotifier{}, 5, 24*time.Hour)
}

func int64Ptr(v int64) *int64  { return &v }
func boolPtr(v bool) *bool     { return &v }
func strPtrT(v string) *string { return &v }

func TestDisputeService_Create_Success(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()

	users.On("GetByID", ctx, int64(100)).Return(&models.User{ID: 100, Username: "creator", Balance: 500}, nil)
	disputes.On("Create", ctx, mock.AnythingOfType("*models.Dispute")).Return(nil)

	d, err := svc.Create(ctx, 100, nil, "Кто выиграет матч?", 200)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusPending, d.Status)
	assert.Equal(t, int64(200), d.Amount)
	// Стороны всегда комплементарны.
	assert.Equal(t, models.OppositeSide(d.CreatorSide), d.OpponentSide)
	assert.NotEqual(t, d.CreatorSide, d.OpponentSide)
	disputes.AssertExpectations(t)
}

func TestDisputeService_Create_Validation(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()

	_, err := svc.Create(ctx, 100, nil, "вопрос", 0)
	assert.Error(t, err)

	_, err = svc.Create(ctx, 100, nil, "   ", 100)
	assert.Error(t, err)

	long := make([]rune, 201)
	for i := range long {
		long[i] = 'я'
	}
	_, err = svc.Create(ctx, 100, nil, string(long), 100)
	assert.Error(t, err)
}

func TestDisputeService_Create_NotifiesInvitedOpponent(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	notifier := &recordingNotifier{}
	svc := NewDisputeService(disputes, users, random.NewSeededSource(1), notifier, 5, 24*time.Hour)
	ctx := context.Background()

	users.On("GetByID", ctx, int64(100)).Return(&models.User{ID: 100, Username: "creator", Balance: 500}, nil)
	users.On("GetByID", ctx, int64(200)).Return(&models.User{ID: 200, Username: "opponent"}, nil)
	disputes.On("Create", ctx, mock.AnythingOfType("*models.Dispute")).Return(nil)

	_, err := svc.Create(ctx, 100, int64Ptr(200), "Кто выиграет матч?", 100)
	assert.NoError(t, err)
	// Приглашённый получает карточку спора сразу после создания.
	assert.Equal(t, []string{EventDisputeCreated}, notifier.events)
}

func TestDisputeService_Create_OpenDisputeNotifiesNobody(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	notifier := &recordingNotifier{}
	svc := NewDisputeService(disputes, users, random.NewSeededSource(1), notifier, 5, 24*time.Hour)
	ctx := context.Background()

	users.On("GetByID", ctx, int64(100)).Return(&models.User{ID: 100, Balance: 500}, nil)
	disputes.On("Create", ctx, mock.AnythingOfType("*models.Dispute")).Return(nil)

	_, err := svc.Create(ctx, 100, nil, "Открытый спор", 100)
	assert.NoError(t, err)
	assert.Empty(t, notifier.events)
}

func TestDisputeService_Create_InsufficientBalance(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()

	users.On("GetByID", ctx, int64(100)).Return(&models.User{ID: 100, Balance: 50}, nil)

	_, err := svc.Create(ctx, 100, nil, "вопрос", 100)
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)
}

func TestDisputeService_Create_SelfDispute(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()

	users.On("GetByID", ctx, int64(100)).Return(&models.User{ID: 100, Balance: 500}, nil)

	_, err := svc.Create(ctx, 100, int64Ptr(100), "вопрос", 100)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "самим собой")
}

func TestDisputeService_Create_BannedCreator(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()

	users.On("GetByID", ctx, int64(100)).Return(&models.User{ID: 100, Balance: 500, IsBanned: true}, nil)

	_, err := svc.Create(ctx, 100, nil, "вопрос", 100)
	assert.ErrorIs(t, err, apperror.ErrUserBanned)
}

func TestDisputeService_Accept_InsufficientFunds_Caller(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	users.On("GetByID", ctx, int64(200)).Return(&models.User{ID: 200}, nil)
	disputes.On("Accept", ctx, id, mock.Anything).
		Return(nil, &repository.InsufficientFundsError{UserID: 200})

	_, err := svc.Accept(ctx, id, 200)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "для принятия")
}

func TestDisputeService_Accept_InsufficientFunds_Creator(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	users.On("GetByID", ctx, int64(200)).Return(&models.User{ID: 200}, nil)
	disputes.On("Accept", ctx, id, mock.Anything).
		Return(nil, &repository.InsufficientFundsError{UserID: 100})

	_, err := svc.Accept(ctx, id, 200)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "у создателя")
}

func TestDisputeService_Accept_Success_NotifiesCreator(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	notifier := &recordingNotifier{}
	svc := NewDisputeService(disputes, users, random.NewSeededSource(1), notifier, 5, 24*time.Hour)
	ctx := context.Background()
	id := uuid.New()

	accepted := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive}
	users.On("GetByID", ctx, int64(200)).Return(&models.User{ID: 200, Balance: 500}, nil)
	disputes.On("Accept", ctx, id, mock.Anything).Return(accepted, nil)

	d, err := svc.Accept(ctx, id, 200)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusActive, d.Status)
	assert.Equal(t, []string{EventDisputeAccepted}, notifier.events)
}

func TestDisputeService_Decline_OnlyInvitedOpponent(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusPending}
	disputes.On("GetByID", ctx, id).Return(d, nil)

	_, err := svc.Decline(ctx, id, 300)
	assert.ErrorIs(t, err, apperror.ErrNotParticipant)
	assert.True(t, apperror.IsForbidden(err))
}

func TestDisputeService_Cancel_OnlyCreator(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{ID: id, CreatorID: 100, Status: models.DisputeStatusPending}
	disputes.On("GetByID", ctx, id).Return(d, nil)

	_, err := svc.Cancel(ctx, id, 200)
	assert.ErrorIs(t, err, apperror.ErrNotParticipant)
}

func TestDisputeService_Cancel_AfterAccept_Conflict(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{ID: id, CreatorID: 100, Status: models.DisputeStatusActive}
	disputes.On("GetByID", ctx, id).Return(d, nil)
	disputes.On("UpdateStatusFrom", ctx, id, models.DisputeStatusPending, models.DisputeStatusCancelled).
		Return(nil, repository.ErrInvalidStatus)

	_, err := svc.Cancel(ctx, id, 100)
	assert.ErrorIs(t, err, apperror.ErrInvalidDisputeState)
}

func TestDisputeService_ResolveCoinflip_RequiresBothReady(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{
		ID: id, CreatorID: 100, OpponentID: int64Ptr(200),
		Status: models.DisputeStatusActive, CreatorReady: true, OpponentReady: false,
	}
	disputes.On("GetByID", ctx, id).Return(d, nil)

	_, err := svc.ResolveCoinflip(ctx, id)
	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDisputeService_ResolveCoinflip_CompletedReturnsStored(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	stored := &models.Dispute{
		ID: id, CreatorID: 100, OpponentID: int64Ptr(200),
		Status: models.DisputeStatusCompleted, WinnerID: int64Ptr(100), Result: strPtrT(models.SideHeads),
	}
	disputes.On("GetByID", ctx, id).Return(stored, nil)

	d, err := svc.ResolveCoinflip(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, stored, d)
	// Расчёт не выполнялся повторно.
	disputes.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_ResolveCoinflip_Settles(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	active := &models.Dispute{
		ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Amount: 100,
		CreatorSide: models.SideHeads, OpponentSide: models.SideTails,
		Status: models.DisputeStatusActive, CreatorReady: true, OpponentReady: true,
	}
	settled := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusCompleted}

	disputes.On("GetByID", ctx, id).Return(active, nil)
	// Ставка 100: банк 200, комиссия 5% = 10, выплата 190.
	disputes.On("Settle", ctx, id, models.DisputeStatusActive, mock.AnythingOfType("*string"), mock.AnythingOfType("int64"), int64(10), int64(190)).
		Return(settled, nil)

	d, err := svc.ResolveCoinflip(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, settled, d)
	disputes.AssertExpectations(t)
}

func TestDisputeService_ResolveCoinflip_LostRaceReturnsStoredOutcome(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	active := &models.Dispute{
		ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Amount: 100,
		CreatorSide: models.SideHeads, OpponentSide: models.SideTails,
		Status: models.DisputeStatusActive, CreatorReady: true, OpponentReady: true,
	}
	settled := &models.Dispute{
		ID: id, CreatorID: 100, OpponentID: int64Ptr(200),
		Status: models.DisputeStatusCompleted, WinnerID: int64Ptr(200),
	}

	disputes.On("GetByID", ctx, id).Return(active, nil).Once()
	disputes.On("Settle", ctx, id, models.DisputeStatusActive, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repository.ErrAlreadySettled)
	// Проигравший гонку перечитывает готовый результат.
	disputes.On("GetByID", ctx, id).Return(settled, nil).Once()

	d, err := svc.ResolveCoinflip(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, int64(200), *d.WinnerID)
}

func TestDisputeService_SettlementAmounts(t *testing.T) {
	svc := newTestService(new(mockDisputeRepo), new(mockUserReader))

	commission, payout := svc.settlementAmounts(100)
	assert.Equal(t, int64(10), commission)
	assert.Equal(t, int64(190), payout)

	// Округление комиссии вниз: банк 66, 5% = 3.3 -> 3.
	commission, payout = svc.settlementAmounts(33)
	assert.Equal(t, int64(3), commission)
	assert.Equal(t, int64(63), payout)

	// Деньги не создаются и не исчезают.
	assert.Equal(t, int64(66), commission+payout)
}

func TestDisputeService_MakeChoice_OpensVoting(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	active := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive, CreatorChoice: boolPtr(true)}
	bothChosen := &models.Dispute{
		ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive,
		CreatorChoice: boolPtr(true), OpponentChoice: boolPtr(false),
	}
	voting := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusVoting}

	disputes.On("GetByID", ctx, id).Return(active, nil)
	disputes.On("SetChoice", ctx, id, models.RoomRoleOpponent, false).Return(bothChosen, nil)
	disputes.On("StartVoting", ctx, id, mock.AnythingOfType("time.Time")).Return(voting, nil)

	d, err := svc.MakeChoice(ctx, id, 200, false)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusVoting, d.Status)
	disputes.AssertExpectations(t)
}

func TestDisputeService_AddVote_ParticipantsCannotVote(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	deadline := time.Now().Add(time.Hour)
	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusVoting, VotingDeadline: &deadline}
	disputes.On("GetByID", ctx, id).Return(d, nil)

	_, err := svc.AddVote(ctx, id, 100, 200)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "не голосуют")
}

func TestDisputeService_AddVote_TargetMustBeParticipant(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	deadline := time.Now().Add(time.Hour)
	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusVoting, VotingDeadline: &deadline}
	disputes.On("GetByID", ctx, id).Return(d, nil)

	_, err := svc.AddVote(ctx, id, 300, 400)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "за участника")
}

func TestDisputeService_AddVote_ExpiredWindowFinalizes(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	deadline := time.Now().Add(-time.Minute)
	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Amount: 100, Status: models.DisputeStatusVoting, VotingDeadline: &deadline}
	settled := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusCompleted, IsDraw: true}

	disputes.On("GetByID", ctx, id).Return(d, nil)
	disputes.On("CountVotes", ctx, id, int64(100), int64(200)).Return(&models.VoteCount{}, nil)
	disputes.On("SettleDraw", ctx, id, models.DisputeStatusVoting).Return(settled, nil)

	_, err := svc.AddVote(ctx, id, 300, 100)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "закрыто")
	disputes.AssertCalled(t, "SettleDraw", ctx, id, models.DisputeStatusVoting)
}

func TestDisputeService_ResolveByVoting_ZeroVotesIsDraw(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	deadline := time.Now().Add(-time.Minute)
	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Amount: 100, Status: models.DisputeStatusVoting, VotingDeadline: &deadline}
	settled := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusCompleted, IsDraw: true}

	disputes.On("GetByID", ctx, id).Return(d, nil)
	disputes.On("CountVotes", ctx, id, int64(100), int64(200)).Return(&models.VoteCount{}, nil)
	disputes.On("SettleDraw", ctx, id, models.DisputeStatusVoting).Return(settled, nil)

	res, err := svc.ResolveByVoting(ctx, id)
	assert.NoError(t, err)
	assert.True(t, res.IsDraw)
	disputes.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_ResolveByVoting_MajorityWins(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	deadline := time.Now().Add(-time.Minute)
	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Amount: 100, Status: models.DisputeStatusVoting, VotingDeadline: &deadline}
	settled := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusCompleted, WinnerID: int64Ptr(200)}

	disputes.On("GetByID", ctx, id).Return(d, nil)
	disputes.On("CountVotes", ctx, id, int64(100), int64(200)).
		Return(&models.VoteCount{CreatorVotes: 1, OpponentVotes: 3, TotalVotes: 4}, nil)
	disputes.On("Settle", ctx, id, models.DisputeStatusVoting, (*string)(nil), int64(200), int64(10), int64(190)).
		Return(settled, nil)

	res, err := svc.ResolveByVoting(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, int64(200), *res.WinnerID)
	disputes.AssertExpectations(t)
}

func TestDisputeService_ResolveByVoting_BeforeDeadline(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	deadline := time.Now().Add(time.Hour)
	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusVoting, VotingDeadline: &deadline}
	disputes.On("GetByID", ctx, id).Return(d, nil)

	_, err := svc.ResolveByVoting(ctx, id)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ещё открыто")
}

func TestDisputeService_CheckExpiredVotings(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()

	id1, id2 := uuid.New(), uuid.New()
	expired := []models.Dispute{
		{ID: id1, CreatorID: 100, OpponentID: int64Ptr(200), Amount: 50, Status: models.DisputeStatusVoting},
		{ID: id2, CreatorID: 300, OpponentID: int64Ptr(400), Amount: 80, Status: models.DisputeStatusVoting},
	}
	disputes.On("ListExpiredVotings", ctx).Return(expired, nil)
	disputes.On("CountVotes", ctx, id1, int64(100), int64(200)).Return(&models.VoteCount{CreatorVotes: 2, TotalVotes: 2}, nil)
	disputes.On("CountVotes", ctx, id2, int64(300), int64(400)).Return(&models.VoteCount{}, nil)
	disputes.On("Settle", ctx, id1, models.DisputeStatusVoting, (*string)(nil), int64(100), int64(5), int64(95)).
		Return(&models.Dispute{ID: id1, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusCompleted}, nil)
	disputes.On("SettleDraw", ctx, id2, models.DisputeStatusVoting).
		Return(&models.Dispute{ID: id2, CreatorID: 300, OpponentID: int64Ptr(400), Status: models.DisputeStatusCompleted, IsDraw: true}, nil)

	resolved, err := svc.CheckExpiredVotings(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, resolved)
}

func TestDisputeService_SetReady_ReturnsBothReady(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	active := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive}
	updated := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive, CreatorReady: true, OpponentReady: true}

	disputes.On("GetByID", ctx, id).Return(active, nil)
	disputes.On("SetReadiness", ctx, id, models.RoomRoleCreator, true).Return(updated, nil)

	_, bothReady, err := svc.SetReady(ctx, id, 100, true)
	assert.NoError(t, err)
	assert.True(t, bothReady)
}

func TestDisputeService_SetReady_Idempotent(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	active := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive}
	ready := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive, CreatorReady: true}

	disputes.On("GetByID", ctx, id).Return(active, nil)
	disputes.On("SetReadiness", ctx, id, models.RoomRoleCreator, true).Return(ready, nil)

	first, firstBoth, err := svc.SetReady(ctx, id, 100, true)
	assert.NoError(t, err)

	// Повторный вызов с тем же значением ничего не меняет.
	second, secondBoth, err := svc.SetReady(ctx, id, 100, true)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, firstBoth, secondBoth)
	assert.False(t, secondBoth)
	disputes.AssertNumberOfCalls(t, "SetReadiness", 2)
}

func TestDisputeService_SetReady_NotParticipant(t *testing.T) {
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newTestService(disputes, users)
	ctx := context.Background()
	id := uuid.New()

	active := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive}
	disputes.On("GetByID", ctx, id).Return(active, nil)

	_, _, err := svc.SetReady(ctx, id, 999, true)
	assert.ErrorIs(t, err, apperror.ErrNotParticipant)
}
