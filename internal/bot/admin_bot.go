package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rias-glitch/casino-backend/internal/logger"
	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/pkg/apperror"
	"github.com/rias-glitch/casino-backend/internal/service"
)

// disputeReader отдаёт админ-боту агрегаты по спорам и конкретные споры.
type disputeReader interface {
	service.DisputeStatsReader
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
}

// ledgerReader отдаёт записи журнала по спору для сверки.
type ledgerReader interface {
	ListByDispute(ctx context.Context, disputeID uuid.UUID) ([]models.Transaction, error)
	SumByDispute(ctx context.Context, disputeID uuid.UUID) (int64, error)
}

// AdminBot обрабатывает команды администраторов через отдельного бота.
type AdminBot struct {
	api      *tgbotapi.BotAPI
	users    *service.UserService
	disputes disputeReader
	ledger   ledgerReader
	adminIDs []int64
	stopCh   chan struct{}
	wg       sync.WaitGroup
	log      *logrus.Entry
}

// NewAdminBot создаёт админ-бота.
func NewAdminBot(token string, users *service.UserService, disputes disputeReader, ledger ledgerReader, adminIDs []int64) (*AdminBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("admin bot: авторизация %w", err)
	}

	log := logger.Log.WithField("component", "admin_bot")
	log.Infof("админ-бот авторизован: @%s", api.Self.UserName)

	return &AdminBot{
		api:      api,
		users:    users,
		disputes: disputes,
		ledger:   ledger,
		adminIDs: adminIDs,
		stopCh:   make(chan struct{}),
		log:      log,
	}, nil
}

// Start запускает прослушивание команд.
func (b *AdminBot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("запущен цикл обновлений")

	for {
		select {
		case <-b.stopCh:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.isAdmin(update.Message.From.ID) {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(update.Message)
		}
	}
}

// Stop плавно останавливает бота.
func (b *AdminBot) Stop() {
	close(b.stopCh)
	b.api.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("админ-бот остановлен")
	case <-time.After(10 * time.Second):
		b.log.Warn("таймаут остановки админ-бота")
	}
}

func (b *AdminBot) isAdmin(userID int64) bool {
	for _, id := range b.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *AdminBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var response string

	switch msg.Command() {
	case "start", "help":
		response = b.helpMessage()
	case "stats":
		response = b.handleStats(ctx)
	case "user":
		response = b.handleUser(ctx, msg.CommandArguments())
	case "dispute":
		response = b.handleDispute(ctx, msg.CommandArguments())
	case "addbalance":
		response = b.handleAddBalance(ctx, msg.CommandArguments())
	case "setwinrate":
		response = b.handleSetWinRate(ctx, msg.CommandArguments())
	case "ban":
		response = b.handleSetBanned(ctx, msg.CommandArguments(), true)
	case "unban":
		response = b.handleSetBanned(ctx, msg.CommandArguments(), false)
	case "top":
		response = b.handleTop(ctx, msg.CommandArguments())
	default:
		response = "Неизвестная команда. Используйте /help для списка команд."
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, response)
	reply.ParseMode = "HTML"
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.api.Send(reply); err != nil {
		b.log.WithError(err).Error("не удалось отправить ответ")
	}
}

func (b *AdminBot) helpMessage() string {
	return `<b>Команды администратора</b>

/stats - Статистика платформы
/top [лимит] - Топ игроков по балансу
/user &lt;@username|tg_id&gt; - Информация об игроке
/dispute &lt;uuid&gt; - Спор и его журнал транзакций
/addbalance &lt;@username|tg_id&gt; &lt;сумма&gt; - Изменить баланс (сумма может быть отрицательной)
/setwinrate &lt;@username|tg_id&gt; &lt;значение&gt; - Установить винрейт
/ban &lt;@username|tg_id&gt; - Заблокировать
/unban &lt;@username|tg_id&gt; - Разблокировать`
}

func (b *AdminBot) handleStats(ctx context.Context) string {
	report, err := b.users.BuildOverview(ctx, b.disputes)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	var sb strings.Builder
	sb.WriteString("<b>Статистика платформы</b>\n\n")
	sb.WriteString(fmt.Sprintf("Игроков: %d\n", report.TotalUsers))
	sb.WriteString(fmt.Sprintf("Суммарный баланс: %d\n", report.TotalBalance))
	sb.WriteString(fmt.Sprintf("Комиссия со споров: %d\n\n", report.TotalCommission))
	sb.WriteString("<b>Споры по статусам:</b>\n")
	for status, count := range report.DisputesByState {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", status, count))
	}
	return sb.String()
}

func (b *AdminBot) handleUser(ctx context.Context, args string) string {
	if args == "" {
		return "Использование: /user <@username|tg_id>"
	}

	user, err := b.resolveUser(ctx, args)
	if apperror.IsNotFound(err) {
		return "Игрок не найден"
	}
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	return fmt.Sprintf(`<b>Информация об игроке</b>

- Telegram ID: %d
- Username: @%s
- Имя: %s
- Баланс: %d
- Винрейт: %.2f
- Игр сыграно: %d
- Выиграно: %d
- Заблокирован: %t
- Регистрация: %s`,
		user.ID,
		user.Username,
		user.FirstName,
		user.Balance,
		user.WinRate,
		user.GamesPlayed,
		user.GamesWon,
		user.IsBanned,
		user.CreatedAt.Format("02.01.2006 15:04"),
	)
}

// handleDispute показывает спор вместе с его журналом транзакций. Сумма
// записей журнала по завершённому спору равна минус комиссии: всё остальное
// вернулось участникам.
func (b *AdminBot) handleDispute(ctx context.Context, args string) string {
	id, err := uuid.Parse(strings.TrimSpace(args))
	if err != nil {
		return "Использование: /dispute <uuid>"
	}

	d, err := b.disputes.GetByID(ctx, id)
	if err != nil {
		return "Спор не найден"
	}

	entries, err := b.ledger.ListByDispute(ctx, id)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}
	sum, err := b.ledger.SumByDispute(ctx, id)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	var sb strings.Builder
	sb.WriteString("<b>Спор</b>\n\n")
	sb.WriteString(fmt.Sprintf("Вопрос: %s\n", d.Question))
	sb.WriteString(fmt.Sprintf("Статус: %s\n", d.Status))
	sb.WriteString(fmt.Sprintf("Ставка: %d, комиссия: %d\n", d.Amount, d.Commission))
	sb.WriteString(fmt.Sprintf("Создатель: %d", d.CreatorID))
	if d.OpponentID != nil {
		sb.WriteString(fmt.Sprintf(", оппонент: %d", *d.OpponentID))
	}
	sb.WriteString("\n\n<b>Журнал</b>\n")
	if len(entries) == 0 {
		sb.WriteString("записей нет\n")
	}
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("- %s: игрок %d, %+d\n", e.Type, e.UserID, e.Amount))
	}
	sb.WriteString(fmt.Sprintf("\nИтог по журналу: %+d", sum))
	return sb.String()
}

func (b *AdminBot) handleAddBalance(ctx context.Context, args string) string {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "Использование: /addbalance <@username|tg_id> <сумма>"
	}

	user, err := b.resolveUser(ctx, parts[0])
	if err != nil {
		return fmt.Sprintf("Игрок не найден: %v", err)
	}

	delta, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "Неверная сумма"
	}

	updated, err := b.users.AdjustBalance(ctx, user.ID, delta)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	return fmt.Sprintf("Баланс изменён на %+d. Новый баланс: %d", delta, updated.Balance)
}

func (b *AdminBot) handleSetWinRate(ctx context.Context, args string) string {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "Использование: /setwinrate <@username|tg_id> <значение>"
	}

	user, err := b.resolveUser(ctx, parts[0])
	if err != nil {
		return fmt.Sprintf("Игрок не найден: %v", err)
	}

	winRate, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "Неверное значение винрейта"
	}

	if err := b.users.SetWinRate(ctx, user.ID, winRate); err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	return fmt.Sprintf("Винрейт @%s установлен: %.2f", user.Username, winRate)
}

func (b *AdminBot) handleSetBanned(ctx context.Context, args string, banned bool) string {
	if args == "" {
		return "Использование: /ban <@username|tg_id>"
	}

	user, err := b.resolveUser(ctx, args)
	if err != nil {
		return fmt.Sprintf("Игрок не найден: %v", err)
	}

	if err := b.users.SetBanned(ctx, user.ID, banned); err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	if banned {
		return "Игрок заблокирован"
	}
	return "Игрок разблокирован"
}

func (b *AdminBot) handleTop(ctx context.Context, args string) string {
	limit := 10
	if args != "" {
		if n, err := strconv.Atoi(args); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	users, err := b.users.Leaderboard(ctx, limit)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}
	if len(users) == 0 {
		return "Игроки не найдены"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>Топ %d по балансу</b>\n\n", limit))
	for i, u := range users {
		sb.WriteString(fmt.Sprintf("%d. %s — %d\n", i+1, u.DisplayName(), u.Balance))
	}
	return sb.String()
}

// resolveUser находит игрока по @username или Telegram ID.
func (b *AdminBot) resolveUser(ctx context.Context, arg string) (*models.User, error) {
	if strings.HasPrefix(arg, "@") {
		return b.users.FindByUsername(ctx, strings.TrimPrefix(arg, "@"))
	}

	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("неверный идентификатор")
	}
	return b.users.GetProfile(ctx, id)
}
