package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rias-glitch/casino-backend/internal/logger"
	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/service"
)

// Префиксы callback-данных инлайн-кнопок.
const (
	callbackAccept  = "dispute_accept:"
	callbackDecline = "dispute_decline:"
)

// Bot — игровой бот: точка входа в мини-приложение, карточки споров с
// кнопками принять/отклонить и доставка уведомлений в личные чаты.
type Bot struct {
	api       *tgbotapi.BotAPI
	users     *service.UserService
	disputes  *service.DisputeService
	webAppURL string
	stopCh    chan struct{}
	wg        sync.WaitGroup
	log       *logrus.Entry
}

// New создаёт игрового бота.
func New(token string, users *service.UserService, disputes *service.DisputeService, webAppURL string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot: авторизация %w", err)
	}

	log := logger.Log.WithField("component", "bot")
	log.Infof("бот авторизован: @%s", api.Self.UserName)

	return &Bot{
		api:       api,
		users:     users,
		disputes:  disputes,
		webAppURL: webAppURL,
		stopCh:    make(chan struct{}),
		log:       log,
	}, nil
}

// Start запускает цикл обработки обновлений.
func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("запущен цикл обновлений")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("цикл обновлений остановлен")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			switch {
			case update.InlineQuery != nil:
				b.wg.Add(1)
				go func(iq *tgbotapi.InlineQuery) {
					defer b.wg.Done()
					b.handleInline(iq)
				}(update.InlineQuery)
			case update.CallbackQuery != nil:
				b.wg.Add(1)
				go func(cq *tgbotapi.CallbackQuery) {
					defer b.wg.Done()
					b.handleCallback(cq)
				}(update.CallbackQuery)
			case update.Message != nil && update.Message.IsCommand():
				b.wg.Add(1)
				go func(msg *tgbotapi.Message) {
					defer b.wg.Done()
					b.handleCommand(msg)
				}(update.Message)
			}
		}
	}
}

// Stop плавно останавливает бота.
func (b *Bot) Stop() {
	close(b.stopCh)
	b.api.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("бот остановлен")
	case <-time.After(10 * time.Second):
		b.log.Warn("таймаут остановки бота, часть обработчиков не завершилась")
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch msg.Command() {
	case "start":
		if _, err := b.users.GetOrCreate(ctx, msg.From.ID, msg.From.UserName, msg.From.FirstName, msg.Chat.ID); err != nil {
			b.log.WithError(err).Error("не удалось зарегистрировать игрока")
		}

		reply := tgbotapi.NewMessage(msg.Chat.ID, "Добро пожаловать в казино! Открывайте мини-приложение и спорьте с друзьями.")
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.InlineKeyboardButton{
					Text:   "Открыть казино",
					WebApp: &tgbotapi.WebAppInfo{URL: b.webAppURL},
				},
			),
		)
		b.send(reply)

	case "balance":
		user, err := b.users.GetProfile(ctx, msg.From.ID)
		if err != nil {
			b.send(tgbotapi.NewMessage(msg.Chat.ID, "Профиль не найден. Отправьте /start"))
			return
		}
		b.send(tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("Ваш баланс: %d", user.Balance)))
	}
}

// handleCallback обрабатывает нажатия кнопок на карточке спора.
func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data := cq.Data
	var answer string

	switch {
	case strings.HasPrefix(data, callbackAccept):
		answer = b.handleAccept(ctx, cq, strings.TrimPrefix(data, callbackAccept))
	case strings.HasPrefix(data, callbackDecline):
		answer = b.handleDecline(ctx, cq, strings.TrimPrefix(data, callbackDecline))
	default:
		answer = "Неизвестное действие"
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, answer)); err != nil {
		b.log.WithError(err).Warn("не удалось ответить на callback")
	}
}

func (b *Bot) handleAccept(ctx context.Context, cq *tgbotapi.CallbackQuery, rawID string) string {
	disputeID, err := uuid.Parse(rawID)
	if err != nil {
		return "Некорректный спор"
	}

	if _, err := b.users.GetOrCreate(ctx, cq.From.ID, cq.From.UserName, cq.From.FirstName, cq.From.ID); err != nil {
		return "Ошибка регистрации"
	}

	d, err := b.disputes.Accept(ctx, disputeID, cq.From.ID)
	if err != nil {
		return errorText(err)
	}

	b.editCard(cq, d, fmt.Sprintf("Спор принят! %s против %s, ставка %d. Откройте мини-приложение для броска монеты.",
		d.CreatorName, derefStr(d.OpponentName), d.Amount))
	return "Спор принят, ваша сторона: " + sideText(d.SideOf(cq.From.ID))
}

func (b *Bot) handleDecline(ctx context.Context, cq *tgbotapi.CallbackQuery, rawID string) string {
	disputeID, err := uuid.Parse(rawID)
	if err != nil {
		return "Некорректный спор"
	}

	d, err := b.disputes.Decline(ctx, disputeID, cq.From.ID)
	if err != nil {
		return errorText(err)
	}

	b.editCard(cq, d, fmt.Sprintf("Спор отклонён.\n\n%s", d.Question))
	return "Спор отклонён"
}

// handleInline отвечает на inline-запрос карточками споров создателя,
// ожидающих принятия. Выбранная карточка отправляется в любой чат с
// кнопками принять/отклонить.
func (b *Bot) handleInline(iq *tgbotapi.InlineQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	disputes, err := b.disputes.ListUserDisputes(ctx, iq.From.ID, 20, 0)
	if err != nil {
		b.log.WithError(err).Warn("не удалось получить споры для inline-запроса")
		return
	}

	query := strings.ToLower(strings.TrimSpace(iq.Query))
	results := make([]interface{}, 0, len(disputes))
	for i := range disputes {
		d := &disputes[i]
		if d.Status != models.DisputeStatusPending || d.CreatorID != iq.From.ID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(d.Question), query) {
			continue
		}

		article := tgbotapi.NewInlineQueryResultArticle(d.ID.String(), d.Question, disputeCard(d))
		article.Description = fmt.Sprintf("Ставка: %d", d.Amount)
		keyboard := disputeKeyboard(d)
		article.ReplyMarkup = &keyboard
		results = append(results, article)
	}

	answer := tgbotapi.InlineConfig{
		InlineQueryID: iq.ID,
		Results:       results,
		CacheTime:     1,
		IsPersonal:    true,
	}
	if _, err := b.api.Request(answer); err != nil {
		b.log.WithError(err).Warn("не удалось ответить на inline-запрос")
	}
}

// ShareDisputeCard публикует карточку спора с кнопками и привязывает спор к
// сообщению для последующих правок на месте.
func (b *Bot) ShareDisputeCard(ctx context.Context, d *models.Dispute, chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, disputeCard(d))
	msg.ReplyMarkup = disputeKeyboard(d)

	sent, err := b.api.Send(msg)
	if err != nil {
		return fmt.Errorf("bot: публикация карточки %w", err)
	}

	if err := b.disputes.BindMessage(ctx, d.ID, chatID, sent.MessageID); err != nil {
		b.log.WithError(err).WithField("dispute_id", d.ID).Warn("не удалось привязать сообщение к спору")
	}
	return nil
}

// disputeCard возвращает текст карточки спора.
func disputeCard(d *models.Dispute) string {
	return fmt.Sprintf("%s предлагает спор!\n\n%s\n\nСтавка: %d", d.CreatorName, d.Question, d.Amount)
}

// disputeKeyboard возвращает кнопки принять/отклонить для карточки спора.
func disputeKeyboard(d *models.Dispute) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Принять", callbackAccept+d.ID.String()),
			tgbotapi.NewInlineKeyboardButtonData("Отклонить", callbackDecline+d.ID.String()),
		),
	)
}

// editCard редактирует карточку спора на месте, убирая кнопки. Карточки из
// inline-запросов правятся по InlineMessageID, отправленные ботом — по
// сохранённой привязке чат/сообщение.
func (b *Bot) editCard(cq *tgbotapi.CallbackQuery, d *models.Dispute, text string) {
	if cq != nil && cq.InlineMessageID != "" {
		edit := tgbotapi.EditMessageTextConfig{
			BaseEdit: tgbotapi.BaseEdit{InlineMessageID: cq.InlineMessageID},
			Text:     text,
		}
		if _, err := b.api.Send(edit); err != nil {
			b.log.WithError(err).WithField("dispute_id", d.ID).Warn("не удалось отредактировать inline-карточку")
		}
		return
	}
	if d.ChatID == nil || d.MessageID == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(*d.ChatID, *d.MessageID, text)
	if _, err := b.api.Send(edit); err != nil {
		b.log.WithError(err).WithField("dispute_id", d.ID).Warn("не удалось отредактировать карточку")
	}
}

// Notify реализует service.Notifier: доставляет событие в личный чат игрока.
// Приглашение в новый спор приходит оппоненту полноценной карточкой с
// кнопками, остальные события — текстом.
func (b *Bot) Notify(ctx context.Context, userID int64, event string, payload interface{}) error {
	if event == service.EventDisputeCreated {
		if d, ok := payload.(*models.Dispute); ok {
			return b.ShareDisputeCard(ctx, d, userID)
		}
		return nil
	}

	text := eventText(event, payload)
	if text == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("bot: уведомление %w", err)
	}
	return nil
}

func eventText(event string, payload interface{}) string {
	d, _ := payload.(*models.Dispute)

	switch event {
	case service.EventDisputeAccepted:
		if d != nil {
			return fmt.Sprintf("Ваш спор принят! Ставка %d в эскроу. Откройте мини-приложение.", d.Amount)
		}
		return "Ваш спор принят!"
	case service.EventDisputeRejected:
		return "Оппонент отклонил ваш спор."
	case service.EventDisputeCancelled:
		return "Создатель отменил спор."
	case service.EventOpponentJoined:
		return "Оппонент зашёл в комнату."
	case service.EventOpponentReady:
		return "Оппонент подтвердил готовность."
	case service.EventDisputeResolved:
		if d != nil && d.IsDraw {
			return "Спор завершился ничьёй, ставки возвращены."
		}
		if d != nil && d.WinnerID != nil {
			return fmt.Sprintf("Спор завершён! Победитель получает %d.", d.Amount*2-d.Commission)
		}
		return "Спор завершён."
	case service.EventVotingStarted:
		return "Мнения разошлись — спор вынесен на голосование. Итоги через 24 часа."
	default:
		return ""
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	// Сообщения apperror уже человекочитаемы.
	parts := strings.SplitN(err.Error(), ": ", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return "Ошибка"
}

// sideText переводит сторону монеты в текст для сообщений.
func sideText(side string) string {
	if side == models.SideHeads {
		return "орёл"
	}
	return "решка"
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).Error("не удалось отправить сообщение")
	}
}
