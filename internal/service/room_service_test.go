package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/pkg/apperror"
	"github.com/rias-glitch/casino-backend/internal/random"
	"github.com/rias-glitch/casino-backend/internal/repository"
)

type mockRoomStore struct {
	mock.Mock
}

func (m *mockRoomStore) Get(ctx context.Context, disputeID uuid.UUID) (*models.Room, error) {
	args := m.Called(ctx, disputeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *mockRoomStore) Save(ctx context.Context, room *models.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *mockRoomStore) Delete(ctx context.Context, disputeID uuid.UUID) error {
	args := m.Called(ctx, disputeID)
	return args.Error(0)
}

func newRoomTestService(rooms *mockRoomStore, disputes *mockDisputeRepo, users *mockUserReader, flipDelay time.Duration) *RoomService {
	engine := NewDisputeService(disputes, users, random.NewSeededSource(1), &recordingNotifier{}, 5, 24*time.Hour)
	return NewRoomService(rooms, engine, &recordingNotifier{}, flipDelay)
}

func TestRoomService_Join_CreatesRoom(t *testing.T) {
	rooms := new(mockRoomStore)
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newRoomTestService(rooms, disputes, users, time.Millisecond)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive}
	disputes.On("GetByID", ctx, id).Return(d, nil)
	rooms.On("Get", ctx, id).Return(nil, repository.ErrRoomNotFound)
	rooms.On("Save", ctx, mock.AnythingOfType("*models.Room")).Return(nil)

	status, err := svc.Join(ctx, id, 100)
	assert.NoError(t, err)
	assert.True(t, status.Room.CreatorJoined)
	assert.False(t, status.Room.OpponentJoined)
	rooms.AssertExpectations(t)
}

func TestRoomService_Join_Idempotent(t *testing.T) {
	rooms := new(mockRoomStore)
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newRoomTestService(rooms, disputes, users, time.Millisecond)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive}
	existing := &models.Room{DisputeID: id, CreatorJoined: true, OpponentJoined: true}
	disputes.On("GetByID", ctx, id).Return(d, nil)
	rooms.On("Get", ctx, id).Return(existing, nil)
	rooms.On("Save", ctx, existing).Return(nil)

	status, err := svc.Join(ctx, id, 200)
	assert.NoError(t, err)
	assert.True(t, status.Room.BothJoined())
}

func TestRoomService_Join_NotParticipant(t *testing.T) {
	rooms := new(mockRoomStore)
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newRoomTestService(rooms, disputes, users, time.Millisecond)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive}
	disputes.On("GetByID", ctx, id).Return(d, nil)

	_, err := svc.Join(ctx, id, 999)
	assert.ErrorIs(t, err, apperror.ErrNotParticipant)
}

func TestRoomService_Join_PendingDispute(t *testing.T) {
	rooms := new(mockRoomStore)
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newRoomTestService(rooms, disputes, users, time.Millisecond)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusPending}
	disputes.On("GetByID", ctx, id).Return(d, nil)

	_, err := svc.Join(ctx, id, 100)
	assert.ErrorIs(t, err, apperror.ErrInvalidDisputeState)
}

func TestRoomService_SetReady_SchedulesFlipWhenBothReady(t *testing.T) {
	rooms := new(mockRoomStore)
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newRoomTestService(rooms, disputes, users, time.Millisecond)
	ctx := context.Background()
	id := uuid.New()

	bothReady := &models.Dispute{
		ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Amount: 100,
		CreatorSide: models.SideHeads, OpponentSide: models.SideTails,
		Status: models.DisputeStatusActive, CreatorReady: true, OpponentReady: true,
	}
	settled := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusCompleted}

	settledCh := make(chan struct{})

	disputes.On("GetByID", mock.Anything, id).Return(bothReady, nil)
	disputes.On("SetReadiness", ctx, id, models.RoomRoleOpponent, true).Return(bothReady, nil)
	disputes.On("Settle", mock.Anything, id, models.DisputeStatusActive, mock.Anything, mock.Anything, int64(10), int64(190)).
		Run(func(mock.Arguments) { close(settledCh) }).
		Return(settled, nil)

	rooms.On("Get", ctx, id).Return(&models.Room{DisputeID: id, CreatorJoined: true, OpponentJoined: true, CreatorReady: true}, nil)
	rooms.On("Save", ctx, mock.AnythingOfType("*models.Room")).Return(nil)
	rooms.On("Delete", mock.Anything, id).Return(nil)

	status, err := svc.SetReady(ctx, id, 200, true)
	assert.NoError(t, err)
	assert.True(t, status.Room.Resolving)

	select {
	case <-settledCh:
	case <-time.After(2 * time.Second):
		t.Fatal("отложенный бросок монеты не выполнился")
	}
}

func TestRoomService_SetReady_NoFlipWhileOneSideNotReady(t *testing.T) {
	rooms := new(mockRoomStore)
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newRoomTestService(rooms, disputes, users, time.Millisecond)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive}
	updated := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive, CreatorReady: true}

	disputes.On("GetByID", ctx, id).Return(d, nil)
	disputes.On("SetReadiness", ctx, id, models.RoomRoleCreator, true).Return(updated, nil)
	rooms.On("Get", ctx, id).Return(nil, repository.ErrRoomNotFound)
	rooms.On("Save", ctx, mock.AnythingOfType("*models.Room")).Return(nil)

	status, err := svc.SetReady(ctx, id, 100, true)
	assert.NoError(t, err)
	assert.False(t, status.Room.Resolving)
	disputes.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_Status_CompletedWithoutRoom(t *testing.T) {
	rooms := new(mockRoomStore)
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newRoomTestService(rooms, disputes, users, time.Millisecond)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusCompleted}
	disputes.On("GetByID", ctx, id).Return(d, nil)
	rooms.On("Get", ctx, id).Return(nil, repository.ErrRoomNotFound)

	status, err := svc.Status(ctx, id)
	assert.NoError(t, err)
	assert.Nil(t, status.Room)
	assert.Equal(t, models.DisputeStatusCompleted, status.Dispute.Status)
}

func TestRoomService_Status_MissingRoom(t *testing.T) {
	rooms := new(mockRoomStore)
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newRoomTestService(rooms, disputes, users, time.Millisecond)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive}
	disputes.On("GetByID", ctx, id).Return(d, nil)
	rooms.On("Get", ctx, id).Return(nil, repository.ErrRoomNotFound)

	_, err := svc.Status(ctx, id)
	assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
}

func TestRoomService_Close_OnlyParticipants(t *testing.T) {
	rooms := new(mockRoomStore)
	disputes := new(mockDisputeRepo)
	users := new(mockUserReader)
	svc := newRoomTestService(rooms, disputes, users, time.Millisecond)
	ctx := context.Background()
	id := uuid.New()

	d := &models.Dispute{ID: id, CreatorID: 100, OpponentID: int64Ptr(200), Status: models.DisputeStatusActive}
	disputes.On("GetByID", ctx, id).Return(d, nil)

	err := svc.Close(ctx, id, 999)
	assert.ErrorIs(t, err, apperror.ErrNotParticipant)
	rooms.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)

	rooms.On("Delete", ctx, id).Return(nil)
	err = svc.Close(ctx, id, 100)
	assert.NoError(t, err)
}
