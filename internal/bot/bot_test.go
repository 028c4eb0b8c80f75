package bot

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/pkg/apperror"
	"github.com/rias-glitch/casino-backend/internal/service"
)

func TestDisputeCard(t *testing.T) {
	d := &models.Dispute{
		ID:          uuid.New(),
		CreatorName: "@creator",
		Question:    "Кто выиграет матч?",
		Amount:      250,
	}

	text := disputeCard(d)
	assert.Contains(t, text, "@creator")
	assert.Contains(t, text, "Кто выиграет матч?")
	assert.Contains(t, text, "250")
}

func TestDisputeKeyboard_CallbackData(t *testing.T) {
	d := &models.Dispute{ID: uuid.New()}

	keyboard := disputeKeyboard(d)
	assert.Len(t, keyboard.InlineKeyboard, 1)
	assert.Len(t, keyboard.InlineKeyboard[0], 2)

	accept := keyboard.InlineKeyboard[0][0]
	decline := keyboard.InlineKeyboard[0][1]
	assert.Equal(t, callbackAccept+d.ID.String(), *accept.CallbackData)
	assert.Equal(t, callbackDecline+d.ID.String(), *decline.CallbackData)
}

func TestSideText(t *testing.T) {
	assert.Equal(t, "орёл", sideText(models.SideHeads))
	assert.Equal(t, "решка", sideText(models.SideTails))
}

func TestEventText(t *testing.T) {
	winner := int64(100)
	resolved := &models.Dispute{Amount: 100, Commission: 10, WinnerID: &winner}
	text := eventText(service.EventDisputeResolved, resolved)
	assert.Contains(t, text, "190")

	draw := &models.Dispute{IsDraw: true}
	assert.Contains(t, eventText(service.EventDisputeResolved, draw), "ничь")

	// Неизвестные события не порождают сообщений.
	assert.Empty(t, eventText("unknown_event", nil))
}

func TestErrorText_StripsCode(t *testing.T) {
	err := apperror.New(apperror.ErrCodeInsufficientFunds, "недостаточно средств на балансе")
	assert.Equal(t, "недостаточно средств на балансе", errorText(err))
}
