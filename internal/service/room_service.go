package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rias-glitch/casino-backend/internal/goroutine"
	"github.com/rias-glitch/casino-backend/internal/logger"
	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/pkg/apperror"
	"github.com/rias-glitch/casino-backend/internal/repository"
)

// RoomStore описывает хранилище эфемерных комнат.
type RoomStore interface {
	Get(ctx context.Context, disputeID uuid.UUID) (*models.Room, error)
	Save(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, disputeID uuid.UUID) error
}

// RoomStatus — снимок комнаты вместе со спором. Отдаётся клиентам при
// опросе: два веб-клиента не связаны напрямую и координируются только так.
type RoomStatus struct {
	Room    *models.Room    `json:"room"`
	Dispute *models.Dispute `json:"dispute"`
}

// RoomService — координатор комнат: отслеживает, кто из сторон открыл
// клиент и кто подтвердил готовность, а при готовности обеих сторон
// запускает бросок монеты через движок споров. Опрос статуса идемпотентен.
type RoomService struct {
	rooms     RoomStore
	disputes  *DisputeService
	notifier  Notifier
	flipDelay time.Duration
}

// NewRoomService создаёт координатор комнат.
func NewRoomService(rooms RoomStore, disputes *DisputeService, notifier Notifier, flipDelay time.Duration) *RoomService {
	return &RoomService{
		rooms:     rooms,
		disputes:  disputes,
		notifier:  notifier,
		flipDelay: flipDelay,
	}
}

// Join отмечает вход участника в комнату. Идемпотентна: повторный вход
// ничего не меняет. Вторая сторона получает уведомление о входе.
func (s *RoomService) Join(ctx context.Context, disputeID uuid.UUID, userID int64) (*RoomStatus, error) {
	d, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	role, err := s.disputes.roleOf(d, userID)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DisputeStatusActive {
		return nil, apperror.ErrInvalidDisputeState
	}

	room, err := s.rooms.Get(ctx, disputeID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		room = &models.Room{DisputeID: disputeID, CreatedAt: time.Now()}
	} else if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка")
	}

	if role == models.RoomRoleCreator {
		room.CreatorJoined = true
	} else {
		room.OpponentJoined = true
	}
	if err := s.rooms.Save(ctx, room); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка")
	}

	if other := d.Opponent(userID); other != 0 && s.notifier != nil {
		_ = s.notifier.Notify(ctx, other, EventOpponentJoined, room)
	}

	return &RoomStatus{Room: room, Dispute: d}, nil
}

// SetReady выставляет готовность участника: сначала в движке споров
// (персистентный флаг), затем в комнате. Когда готовы обе стороны, бросок
// монеты планируется с небольшой задержкой — пауза нужна клиентам для
// отрисовки анимации и не влияет на корректность: сам расчёт защищён CAS.
func (s *RoomService) SetReady(ctx context.Context, disputeID uuid.UUID, userID int64, ready bool) (*RoomStatus, error) {
	d, bothReady, err := s.disputes.SetReady(ctx, disputeID, userID, ready)
	if err != nil {
		return nil, err
	}

	room, err := s.rooms.Get(ctx, disputeID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		room = &models.Room{DisputeID: disputeID, CreatedAt: time.Now()}
	} else if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка")
	}

	if d.CreatorID == userID {
		room.CreatorJoined = true
		room.CreatorReady = ready
	} else {
		room.OpponentJoined = true
		room.OpponentReady = ready
	}

	if bothReady && !room.Resolving {
		room.Resolving = true
		s.scheduleResolve(disputeID)
	}

	if err := s.rooms.Save(ctx, room); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка")
	}

	return &RoomStatus{Room: room, Dispute: d}, nil
}

// Status возвращает текущее состояние комнаты и спора. Клиенты опрашивают
// его многократно — чтение ничего не мутирует.
func (s *RoomService) Status(ctx context.Context, disputeID uuid.UUID) (*RoomStatus, error) {
	d, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	room, err := s.rooms.Get(ctx, disputeID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		// Спор уже рассчитан — комната удалена, отдаём только спор.
		if d.Status == models.DisputeStatusCompleted {
			return &RoomStatus{Dispute: d}, nil
		}
		return nil, apperror.ErrRoomNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка")
	}

	return &RoomStatus{Room: room, Dispute: d}, nil
}

// Close удаляет комнату. Доступно только участникам спора.
func (s *RoomService) Close(ctx context.Context, disputeID uuid.UUID, userID int64) error {
	d, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return err
	}
	if _, err := s.disputes.roleOf(d, userID); err != nil {
		return err
	}
	if err := s.rooms.Delete(ctx, disputeID); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка")
	}
	return nil
}

// scheduleResolve запускает отложенный бросок монеты. Если два инстанса
// запланируют его одновременно, второй вызов безвреден: движок вернёт уже
// рассчитанный результат.
func (s *RoomService) scheduleResolve(disputeID uuid.UUID) {
	goroutine.SafeGo(func() {
		time.Sleep(s.flipDelay)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := s.disputes.ResolveCoinflip(ctx, disputeID); err != nil {
			logger.Log.WithError(err).WithField("dispute_id", disputeID).
				Error("room: не удалось рассчитать спор")
			return
		}
		if err := s.rooms.Delete(ctx, disputeID); err != nil {
			logger.Log.WithError(err).WithField("dispute_id", disputeID).
				Warn("room: не удалось удалить комнату после расчёта")
		}
	})
}
