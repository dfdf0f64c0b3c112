package store

import (
	"context"
	"testing"
	"time"

	"punter/internal/clock"
	"punter/internal/wire"
)

func newActiveBattle(t *testing.T, fb *fakeBackend) *Battle {
	t.Helper()
	fb.reply(wire.ReqBattleSub, `{"gameId":"g0","minBet":"0.25","maxBet":"250.00"}`)
	battle := NewBattle(fb, nil)
	unsub := battle.Subscribe(func(BattleState) {})
	t.Cleanup(unsub)
	waitFor(t, "battle activation", func() bool { return battle.State().MinBet == "0.25" })
	return battle
}

func TestBattleRevealWindowCommitsAfterFourSeconds(t *testing.T) {
	fake := clock.NewFake()
	fb := newFakeBackend(fake)
	battle := newActiveBattle(t, fb)

	fb.push(wire.EvBattleNewGame, `{"gameId":"g1","fairHash":"h1","seconds":20}`)
	fb.push(wire.EvBattleSlider, `{"gameId":"g1","team":"red","pot":"14.00"}`)

	if st := battle.State(); st.Phase != BattleResolving {
		t.Fatalf("phase = %s, want resolving", st.Phase)
	}

	fake.Advance(BATTLE_REVEAL_WINDOW - time.Millisecond)
	if len(battle.State().History) != 0 {
		t.Fatal("history committed before reveal window closed")
	}

	fake.Advance(time.Millisecond)
	st := battle.State()
	if st.Phase != BattleBetting {
		t.Fatalf("phase = %s after window, want betting", st.Phase)
	}
	if len(st.History) != 1 || st.History[0].Team != "red" || st.History[0].Pot != "14.00" {
		t.Fatalf("history = %+v", st.History)
	}
}

func TestBattleReplayedSliderReturnsToBetting(t *testing.T) {
	fake := clock.NewFake()
	fb := newFakeBackend(fake)
	battle := newActiveBattle(t, fb)

	fb.push(wire.EvBattleSlider, `{"gameId":"g1","team":"red","pot":"14.00"}`)
	fake.Advance(BATTLE_REVEAL_WINDOW)
	fb.push(wire.EvBattleSlider, `{"gameId":"g1","team":"red","pot":"14.00"}`)
	fake.Advance(BATTLE_REVEAL_WINDOW)

	st := battle.State()
	if len(st.History) != 1 {
		t.Fatalf("history len = %d, want 1", len(st.History))
	}
	if st.Phase != BattleBetting {
		t.Fatalf("phase after replayed slider = %s, want betting", st.Phase)
	}
}

func TestBattleNewGameCancelsRevealTimer(t *testing.T) {
	fake := clock.NewFake()
	fb := newFakeBackend(fake)
	battle := newActiveBattle(t, fb)

	fb.push(wire.EvBattleSlider, `{"gameId":"g1","team":"blue","pot":"3.00"}`)
	fb.push(wire.EvBattleNewGame, `{"gameId":"g2","seconds":20}`)

	fake.Advance(BATTLE_REVEAL_WINDOW * 2)
	st := battle.State()
	if len(st.History) != 0 {
		t.Fatalf("cancelled reveal still committed: %+v", st.History)
	}
	if st.GameID != "g2" || st.Phase != BattleBetting {
		t.Fatalf("game=%s phase=%s", st.GameID, st.Phase)
	}
}

func TestBattleBetEventAppendsAndBumpsPot(t *testing.T) {
	fb := newFakeBackend(clock.NewFake())
	battle := newActiveBattle(t, fb)

	fb.push(wire.EvBattleBet, `{"userId":"u1","name":"ann","amount":"5.00","side":"red","pot":"5.00"}`)
	fb.push(wire.EvBattleBet, `{"userId":"u2","name":"bob","amount":"3.00","side":"blue","pot":"8.00"}`)

	st := battle.State()
	if len(st.Bets) != 2 {
		t.Fatalf("bets = %+v", st.Bets)
	}
	if st.Pot != "8.00" {
		t.Fatalf("pot = %s, want 8.00", st.Pot)
	}
}

func TestBattleBetSendsTeam(t *testing.T) {
	fb := newFakeBackend(clock.NewFake())
	battle := newActiveBattle(t, fb)

	if err := battle.Bet(context.Background(), "1.00", "blue"); err != nil {
		t.Fatalf("Bet: %v", err)
	}
	if got := fb.countCalls(wire.ReqBattleBet); got != 1 {
		t.Fatalf("battle.bet calls = %d, want 1", got)
	}
}
