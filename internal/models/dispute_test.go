package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOppositeSide(t *testing.T) {
	assert.Equal(t, SideTails, OppositeSide(SideHeads))
	assert.Equal(t, SideHeads, OppositeSide(SideTails))
}

func TestVoteCount_WinnerID(t *testing.T) {
	vc := &VoteCount{CreatorVotes: 3, OpponentVotes: 1}
	assert.Equal(t, int64(100), vc.WinnerID(100, 200))

	vc = &VoteCount{CreatorVotes: 1, OpponentVotes: 4}
	assert.Equal(t, int64(200), vc.WinnerID(100, 200))

	// Равенство голосов — ничья, в том числе ноль голосов.
	vc = &VoteCount{CreatorVotes: 2, OpponentVotes: 2}
	assert.Equal(t, int64(0), vc.WinnerID(100, 200))

	vc = &VoteCount{}
	assert.Equal(t, int64(0), vc.WinnerID(100, 200))
}

func TestDispute_CanBeAccepted(t *testing.T) {
	opponent := int64(200)

	// Адресный спор принимает только приглашённый.
	d := &Dispute{CreatorID: 100, OpponentID: &opponent, Status: DisputeStatusPending}
	assert.True(t, d.CanBeAccepted(200))
	assert.False(t, d.CanBeAccepted(300))
	assert.False(t, d.CanBeAccepted(100))

	// Открытый спор принимает любой, кроме создателя.
	open := &Dispute{CreatorID: 100, Status: DisputeStatusPending}
	assert.True(t, open.CanBeAccepted(300))
	assert.False(t, open.CanBeAccepted(100))

	// После принятия спор больше не принимается.
	d.Status = DisputeStatusActive
	assert.False(t, d.CanBeAccepted(200))
}

func TestDispute_Opponent(t *testing.T) {
	opponent := int64(200)
	d := &Dispute{CreatorID: 100, OpponentID: &opponent}

	assert.Equal(t, int64(200), d.Opponent(100))
	assert.Equal(t, int64(100), d.Opponent(200))
	assert.Equal(t, int64(0), d.Opponent(300))

	open := &Dispute{CreatorID: 100}
	assert.Equal(t, int64(0), open.Opponent(100))
}
