package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rias-glitch/casino-backend/internal/logger"
	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/pkg/apperror"
	"github.com/rias-glitch/casino-backend/internal/random"
	"github.com/rias-glitch/casino-backend/internal/repository"
)

// Максимальная длина вопроса спора.
const maxQuestionLen = 200

// DisputeRepository описывает взаимодействие движка с хранилищем споров.
type DisputeRepository interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Dispute, error)
	ListActiveVotings(ctx context.Context) ([]models.Dispute, error)
	ListExpiredVotings(ctx context.Context) ([]models.Dispute, error)
	UpdateMessageRef(ctx context.Context, id uuid.UUID, chatID int64, messageID int) error
	Accept(ctx context.Context, id uuid.UUID, opponent *models.User) (*models.Dispute, error)
	Settle(ctx context.Context, id uuid.UUID, fromStatus string, result *string, winnerID int64, commission, payout int64) (*models.Dispute, error)
	SettleDraw(ctx context.Context, id uuid.UUID, fromStatus string) (*models.Dispute, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, fromStatus, toStatus string) (*models.Dispute, error)
	SetReadiness(ctx context.Context, id uuid.UUID, role string, ready bool) (*models.Dispute, error)
	SetChoice(ctx context.Context, id uuid.UUID, role string, choice bool) (*models.Dispute, error)
	StartVoting(ctx context.Context, id uuid.UUID, deadline time.Time) (*models.Dispute, error)
	AddVote(ctx context.Context, vote *models.DisputeVote) error
	CountVotes(ctx context.Context, id uuid.UUID, creatorID, opponentID int64) (*models.VoteCount, error)
}

// UserReader отдаёт движку данные игроков.
type UserReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// DisputeService — движок споров: машина состояний, рукопожатие готовности,
// бросок монеты, путь голосования и расчёт. Денежные инварианты (эскроу и
// расчёт ровно один раз) обеспечиваются условными переходами статуса в
// репозитории; сервис проверяет предусловия и выполняет доменную логику.
type DisputeService struct {
	disputes DisputeRepository
	users    UserReader
	rnd      random.Source
	notifier Notifier

	commissionPercent int64
	votingWindow      time.Duration
}

// NewDisputeService создаёт движок споров.
func NewDisputeService(disputes DisputeRepository, users UserReader, rnd random.Source, notifier Notifier, commissionPercent int64, votingWindow time.Duration) *DisputeService {
	return &DisputeService{
		disputes:          disputes,
		users:             users,
		rnd:               rnd,
		notifier:          notifier,
		commissionPercent: commissionPercent,
		votingWindow:      votingWindow,
	}
}

// SetNotifier подключает канал уведомлений. Вызывается один раз при сборке
// приложения, когда все каналы доставки уже созданы.
func (s *DisputeService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Create создаёт спор в статусе pending. Сторона монеты создателя выбирается
// случайно, оппоненту достаётся противоположная. Деньги не двигаются —
// проверяется только достаточность баланса создателя.
func (s *DisputeService) Create(ctx context.Context, creatorID int64, opponentID *int64, question string, amount int64) (*models.Dispute, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "ставка должна быть положительной")
	}
	question = strings.TrimSpace(question)
	if question == "" || len([]rune(question)) > maxQuestionLen {
		return nil, apperror.New(apperror.ErrCodeValidation, "вопрос спора пуст или слишком длинный")
	}

	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if creator.IsBanned {
		return nil, apperror.ErrUserBanned
	}
	if creator.Balance < amount {
		return nil, apperror.ErrInsufficientFunds
	}

	d := &models.Dispute{
		CreatorID:   creatorID,
		CreatorName: creator.DisplayName(),
		Question:    question,
		Amount:      amount,
		Status:      models.DisputeStatusPending,
	}

	if opponentID != nil {
		if *opponentID == creatorID {
			return nil, apperror.New(apperror.ErrCodeValidation, "нельзя спорить с самим собой")
		}
		opponent, err := s.users.GetByID(ctx, *opponentID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		if opponent.IsBanned {
			return nil, apperror.ErrUserBanned
		}
		d.OpponentID = opponentID
		name := opponent.DisplayName()
		d.OpponentName = &name
	}

	d.CreatorSide = s.rnd.Side()
	d.OpponentSide = models.OppositeSide(d.CreatorSide)

	if err := s.disputes.Create(ctx, d); err != nil {
		return nil, mapRepoError(err)
	}

	// Приглашённый оппонент сразу получает карточку спора.
	if d.OpponentID != nil {
		s.notify(ctx, *d.OpponentID, EventDisputeCreated, d)
	}

	logger.Log.WithField("dispute_id", d.ID).WithField("creator_id", creatorID).
		Info("dispute: создан спор")
	return d, nil
}

// Accept принимает спор: проверка балансов, эскроу обеих ставок и переход
// pending -> active одной транзакцией в репозитории.
func (s *DisputeService) Accept(ctx context.Context, id uuid.UUID, userID int64) (*models.Dispute, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if user.IsBanned {
		return nil, apperror.ErrUserBanned
	}

	d, err := s.disputes.Accept(ctx, id, user)
	if err != nil {
		var fundsErr *repository.InsufficientFundsError
		if errors.As(err, &fundsErr) {
			if fundsErr.UserID == userID {
				return nil, apperror.New(apperror.ErrCodeInsufficientFunds, "недостаточно средств для принятия спора")
			}
			return nil, apperror.New(apperror.ErrCodeInsufficientFunds, "у создателя спора недостаточно средств")
		}
		return nil, mapRepoError(err)
	}

	s.notify(ctx, d.CreatorID, EventDisputeAccepted, d)

	logger.Log.WithField("dispute_id", d.ID).WithField("opponent_id", userID).
		Info("dispute: спор принят, ставки в эскроу")
	return d, nil
}

// Decline отклоняет приглашение. Доступно только приглашённому оппоненту
// и только пока спор в pending — деньги ещё не двигались.
func (s *DisputeService) Decline(ctx context.Context, id uuid.UUID, userID int64) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if d.OpponentID == nil || *d.OpponentID != userID {
		return nil, apperror.ErrNotParticipant
	}

	d, err = s.disputes.UpdateStatusFrom(ctx, id, models.DisputeStatusPending, models.DisputeStatusRejected)
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.notify(ctx, d.CreatorID, EventDisputeRejected, d)
	return d, nil
}

// Cancel отменяет спор. Доступно только создателю и только пока спор в pending.
func (s *DisputeService) Cancel(ctx context.Context, id uuid.UUID, userID int64) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if d.CreatorID != userID {
		return nil, apperror.ErrNotParticipant
	}

	d, err = s.disputes.UpdateStatusFrom(ctx, id, models.DisputeStatusPending, models.DisputeStatusCancelled)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if d.OpponentID != nil {
		s.notify(ctx, *d.OpponentID, EventDisputeCancelled, d)
	}
	return d, nil
}

// SetReady устанавливает флаг готовности участника. Операция идемпотентна:
// повтор с тем же значением ничего не меняет, но завершается успешно.
// Возвращает обновлённый спор и признак готовности обеих сторон.
func (s *DisputeService) SetReady(ctx context.Context, id uuid.UUID, userID int64, ready bool) (*models.Dispute, bool, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, false, mapRepoError(err)
	}
	role, err := s.roleOf(d, userID)
	if err != nil {
		return nil, false, err
	}

	d, err = s.disputes.SetReadiness(ctx, id, role, ready)
	if err != nil {
		return nil, false, mapRepoError(err)
	}

	s.notify(ctx, d.Opponent(userID), EventOpponentReady, d)
	return d, d.BothReady(), nil
}

// ResolveCoinflip бросает монету и рассчитывает спор. Требует статус active
// и готовность обеих сторон. Функция безопасна при конкурентном вызове
// обоими клиентами: расчёт выполняет только тот, чей условный переход
// статуса сработал; остальные получают уже сохранённый результат.
func (s *DisputeService) ResolveCoinflip(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}

	// Уже рассчитан — возвращаем готовый исход, не пересчитывая.
	if d.Status == models.DisputeStatusCompleted {
		return d, nil
	}
	if d.Status != models.DisputeStatusActive {
		return nil, apperror.ErrInvalidDisputeState
	}
	if !d.BothReady() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "обе стороны должны подтвердить готовность")
	}
	if d.OpponentID == nil {
		return nil, apperror.ErrInvalidDisputeState
	}

	result := s.rnd.Side()
	winnerID := d.CreatorID
	if d.OpponentSide == result {
		winnerID = *d.OpponentID
	}
	commission, payout := s.settlementAmounts(d.Amount)

	settled, err := s.disputes.Settle(ctx, id, models.DisputeStatusActive, &result, winnerID, commission, payout)
	if errors.Is(err, repository.ErrAlreadySettled) {
		// Проиграли гонку — другой запрос уже рассчитал спор.
		return s.disputes.GetByID(ctx, id)
	}
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.notify(ctx, settled.CreatorID, EventDisputeResolved, settled)
	s.notify(ctx, *settled.OpponentID, EventDisputeResolved, settled)

	logger.Log.WithField("dispute_id", id).WithField("result", result).
		WithField("winner_id", winnerID).Info("dispute: монета брошена, спор рассчитан")
	return settled, nil
}

// MakeChoice записывает выбор участника по исходу спора (путь голосования,
// когда истина спора — не бросок монеты). Когда выбрали оба, открывается
// окно голосования.
func (s *DisputeService) MakeChoice(ctx context.Context, id uuid.UUID, userID int64, choice bool) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	role, err := s.roleOf(d, userID)
	if err != nil {
		return nil, err
	}

	d, err = s.disputes.SetChoice(ctx, id, role, choice)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if d.BothChosen() {
		deadline := time.Now().Add(s.votingWindow)
		d, err = s.disputes.StartVoting(ctx, id, deadline)
		if errors.Is(err, repository.ErrInvalidStatus) {
			// Конкурентный выбор второй стороны уже открыл голосование.
			return s.disputes.GetByID(ctx, id)
		}
		if err != nil {
			return nil, mapRepoError(err)
		}
		s.notify(ctx, d.CreatorID, EventVotingStarted, d)
		if d.OpponentID != nil {
			s.notify(ctx, *d.OpponentID, EventVotingStarted, d)
		}
	}
	return d, nil
}

// AddVote записывает голос стороннего пользователя за одного из участников.
// Участники спора голосовать не могут. Голос по истёкшему окну сначала
// финализирует спор, затем отклоняется.
func (s *DisputeService) AddVote(ctx context.Context, id uuid.UUID, voterID, voteForID int64) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if d.Status != models.DisputeStatusVoting {
		return nil, apperror.ErrInvalidDisputeState
	}
	if d.VotingDeadline != nil && time.Now().After(*d.VotingDeadline) {
		if _, err := s.resolveVoting(ctx, d); err != nil {
			return nil, err
		}
		return nil, apperror.New(apperror.ErrCodeInvalidState, "окно голосования закрыто")
	}
	if d.IsParticipant(voterID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "участники спора не голосуют")
	}
	if !d.IsParticipant(voteForID) {
		return nil, apperror.New(apperror.ErrCodeValidation, "голосовать можно только за участника спора")
	}
	if _, err := s.users.GetByID(ctx, voterID); err != nil {
		return nil, mapRepoError(err)
	}

	vote := &models.DisputeVote{DisputeID: id, VoterID: voterID, VoteForID: voteForID}
	if err := s.disputes.AddVote(ctx, vote); err != nil {
		return nil, mapRepoError(err)
	}

	s.notify(ctx, d.CreatorID, EventVoteAdded, d)
	if d.OpponentID != nil {
		s.notify(ctx, *d.OpponentID, EventVoteAdded, d)
	}
	return d, nil
}

// ResolveByVoting финализирует спор по итогам голосования. Вызывается по
// запросу после дедлайна либо периодической зачисткой. Большинство голосов
// определяет победителя; равенство (в том числе ноль голосов) — ничья с
// полным возвратом ставок без комиссии.
func (s *DisputeService) ResolveByVoting(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if d.Status == models.DisputeStatusCompleted {
		return d, nil
	}
	if d.Status != models.DisputeStatusVoting {
		return nil, apperror.ErrInvalidDisputeState
	}
	if d.VotingDeadline != nil && time.Now().Before(*d.VotingDeadline) {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "окно голосования ещё открыто")
	}
	return s.resolveVoting(ctx, d)
}

// CheckExpiredVotings финализирует все споры с истёкшим окном голосования.
// Запускается периодически; безопасна при конкурентном выполнении — каждый
// спор защищён CAS по статусу. Возвращает количество закрытых споров.
func (s *DisputeService) CheckExpiredVotings(ctx context.Context) (int, error) {
	expired, err := s.disputes.ListExpiredVotings(ctx)
	if err != nil {
		return 0, mapRepoError(err)
	}

	resolved := 0
	for i := range expired {
		if _, err := s.resolveVoting(ctx, &expired[i]); err != nil {
			logger.Log.WithError(err).WithField("dispute_id", expired[i].ID).
				Error("dispute: не удалось финализировать голосование")
			continue
		}
		resolved++
	}
	return resolved, nil
}

// GetDispute возвращает полный снимок спора.
func (s *DisputeService) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return d, nil
}

// ListUserDisputes возвращает все споры с участием пользователя.
func (s *DisputeService) ListUserDisputes(ctx context.Context, userID int64, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	disputes, err := s.disputes.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return disputes, nil
}

// ListActiveVotings возвращает споры с открытым окном голосования.
func (s *DisputeService) ListActiveVotings(ctx context.Context) ([]models.Dispute, error) {
	disputes, err := s.disputes.ListActiveVotings(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return disputes, nil
}

// CountVotes возвращает текущий подсчёт голосов по спору.
func (s *DisputeService) CountVotes(ctx context.Context, id uuid.UUID) (*models.VoteCount, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	opponentID := int64(0)
	if d.OpponentID != nil {
		opponentID = *d.OpponentID
	}
	vc, err := s.disputes.CountVotes(ctx, id, d.CreatorID, opponentID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return vc, nil
}

// BindMessage сохраняет привязку спора к сообщению в чате для правок на месте.
func (s *DisputeService) BindMessage(ctx context.Context, id uuid.UUID, chatID int64, messageID int) error {
	if err := s.disputes.UpdateMessageRef(ctx, id, chatID, messageID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// resolveVoting подсчитывает голоса и рассчитывает спор из статуса voting.
// Проигравший CAS возвращает уже готовый результат без ошибки.
func (s *DisputeService) resolveVoting(ctx context.Context, d *models.Dispute) (*models.Dispute, error) {
	opponentID := int64(0)
	if d.OpponentID != nil {
		opponentID = *d.OpponentID
	}
	vc, err := s.disputes.CountVotes(ctx, d.ID, d.CreatorID, opponentID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	var settled *models.Dispute
	winnerID := vc.WinnerID(d.CreatorID, opponentID)
	if winnerID == 0 {
		settled, err = s.disputes.SettleDraw(ctx, d.ID, models.DisputeStatusVoting)
	} else {
		commission, payout := s.settlementAmounts(d.Amount)
		settled, err = s.disputes.Settle(ctx, d.ID, models.DisputeStatusVoting, nil, winnerID, commission, payout)
	}
	if errors.Is(err, repository.ErrAlreadySettled) {
		return s.disputes.GetByID(ctx, d.ID)
	}
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.notify(ctx, settled.CreatorID, EventDisputeResolved, settled)
	if settled.OpponentID != nil {
		s.notify(ctx, *settled.OpponentID, EventDisputeResolved, settled)
	}
	return settled, nil
}

// settlementAmounts вычисляет комиссию и выплату: банк — две ставки,
// комиссия — целочисленный процент от банка с округлением вниз.
func (s *DisputeService) settlementAmounts(stake int64) (commission, payout int64) {
	pot := stake * 2
	commission = pot * s.commissionPercent / 100
	payout = pot - commission
	return commission, payout
}

// roleOf возвращает роль участника в споре.
func (s *DisputeService) roleOf(d *models.Dispute, userID int64) (string, error) {
	switch {
	case d.CreatorID == userID:
		return models.RoomRoleCreator, nil
	case d.OpponentID != nil && *d.OpponentID == userID:
		return models.RoomRoleOpponent, nil
	default:
		return "", apperror.ErrNotParticipant
	}
}

// notify доставляет событие, не прерывая основную операцию при ошибке.
func (s *DisputeService) notify(ctx context.Context, userID int64, event string, payload interface{}) {
	if s.notifier == nil || userID == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, userID, event, payload); err != nil && logger.Log != nil {
		logger.Log.WithError(err).Warnf("dispute: не удалось отправить событие %s", event)
	}
}

// mapRepoError переводит ошибки репозитория в типизированные ошибки API.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDisputeNotFound):
		return apperror.ErrDisputeNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return apperror.ErrUserNotFound
	case errors.Is(err, repository.ErrNotParticipant):
		return apperror.ErrNotParticipant
	case errors.Is(err, repository.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds
	case errors.Is(err, repository.ErrInvalidStatus), errors.Is(err, repository.ErrAlreadySettled):
		return apperror.ErrInvalidDisputeState
	default:
		return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка")
	}
}
