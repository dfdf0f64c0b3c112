package store

import (
	"context"
	"encoding/json"
	"testing"

	"punter/internal/clock"
	"punter/internal/wire"
)

func newActiveJackpot(t *testing.T, fb *fakeBackend) *Jackpot {
	t.Helper()
	fb.reply(wire.ReqJackpotRoomSub, `{"room":"easy","roundId":"r0","pot":"1.00","minBet":"0.25","maxBet":"250.00"}`)
	jp := NewJackpot(fb, nil)
	unsub := jp.Subscribe(func(JackpotState) {})
	t.Cleanup(unsub)
	waitFor(t, "jackpot activation", func() bool { return jp.State().MinBet == "0.25" })
	return jp
}

func TestJackpotBetReplacesWholeList(t *testing.T) {
	fb := newFakeBackend(clock.NewFake())
	jp := newActiveJackpot(t, fb)

	fb.push(wire.EvJackpotBet, `{"room":"easy","pot":"5.00","bets":[{"userId":"u1","name":"ann","amount":"5.00","chance":100}]}`)
	fb.push(wire.EvJackpotBet, `{"room":"easy","pot":"10.00","bets":[{"userId":"u1","name":"ann","amount":"5.00","chance":50},{"userId":"u2","name":"bob","amount":"5.00","chance":50}]}`)

	st := jp.State()
	if st.Pot != "10.00" || len(st.Bets) != 2 {
		t.Fatalf("pot=%s bets=%d", st.Pot, len(st.Bets))
	}
	// Chances shift with each bet, so the first bettor's chance must reflect
	// the latest list.
	if st.Bets[0].Chance != 50 {
		t.Fatalf("bets[0].chance = %v, want 50", st.Bets[0].Chance)
	}
}

func TestJackpotOtherRoomEventsIgnored(t *testing.T) {
	fb := newFakeBackend(clock.NewFake())
	jp := newActiveJackpot(t, fb)

	fb.push(wire.EvJackpotBet, `{"room":"hard","pot":"50.00","bets":[{"userId":"u9","name":"zed","amount":"50.00","chance":100}]}`)
	fb.push(wire.EvJackpotTimer, `{"room":"hard","seconds":3}`)

	st := jp.State()
	if len(st.Bets) != 0 || st.Pot != "1.00" || st.Countdown != 0 {
		t.Fatalf("other-room events leaked: %+v", st)
	}
}

func TestJackpotRevealWindowCommitsOnce(t *testing.T) {
	fake := clock.NewFake()
	fb := newFakeBackend(fake)
	jp := newActiveJackpot(t, fb)

	fb.push(wire.EvJackpotSlider, `{"room":"easy","roundId":"r1","winnerId":"u1","winnerName":"ann","pot":"12.00","angle":123}`)
	if st := jp.State(); st.Phase != JackpotRevealing {
		t.Fatalf("phase = %s, want revealing", st.Phase)
	}

	fake.Advance(JACKPOT_REVEAL_WINDOW)
	st := jp.State()
	if st.Phase != JackpotBetting || st.Pot != "0.00" {
		t.Fatalf("after reveal: phase=%s pot=%s", st.Phase, st.Pot)
	}
	if len(st.History) != 1 || st.History[0].WinnerName != "ann" {
		t.Fatalf("history = %+v", st.History)
	}

	// Replayed slider for the same round commits nothing new, but the
	// reveal window must still close back to betting.
	fb.push(wire.EvJackpotSlider, `{"room":"easy","roundId":"r1","winnerId":"u1","winnerName":"ann","pot":"12.00","angle":123}`)
	fake.Advance(JACKPOT_REVEAL_WINDOW)
	st = jp.State()
	if len(st.History) != 1 {
		t.Fatalf("history len = %d, want 1", len(st.History))
	}
	if st.Phase != JackpotBetting {
		t.Fatalf("phase after replayed slider = %s, want betting", st.Phase)
	}
}

func TestJackpotSwitchRoomResetsEverything(t *testing.T) {
	fake := clock.NewFake()
	fb := newFakeBackend(fake)
	jp := newActiveJackpot(t, fb)

	fb.push(wire.EvJackpotBet, `{"room":"easy","pot":"5.00","bets":[{"userId":"u1","name":"ann","amount":"5.00","chance":100}]}`)
	fb.push(wire.EvJackpotSlider, `{"room":"easy","roundId":"r1","winnerId":"u1","winnerName":"ann","pot":"5.00","angle":90}`)

	fb.reply(wire.ReqJackpotRoomSub, `{"room":"medium","roundId":"m1","pot":"0.50","minBet":"1.00","maxBet":"500.00"}`)
	jp.SwitchRoom(context.Background(), "medium")

	// Transient state clears immediately, before the new snapshot lands.
	st := jp.State()
	if st.Room != "medium" || st.Phase != JackpotBetting || len(st.Bets) != 0 || st.Pot != "0.00" {
		t.Fatalf("post-switch state: %+v", st)
	}

	// The old room's reveal timer must not fire a stale commit.
	fake.Advance(JACKPOT_REVEAL_WINDOW * 2)
	if got := len(jp.State().History); got != 0 {
		t.Fatalf("stale reveal committed after switch: %d entries", got)
	}

	waitFor(t, "medium snapshot", func() bool { return jp.State().RoundID == "m1" })
	st = jp.State()
	if st.MinBet != "1.00" || st.Pot != "0.50" {
		t.Fatalf("medium snapshot not applied: %+v", st)
	}
	if got := fb.countCalls(wire.ReqJackpotRoomSub); got != 2 {
		t.Fatalf("room subscribes = %d, want 2", got)
	}
}

func TestJackpotSwitchToSameRoomIsNoop(t *testing.T) {
	fb := newFakeBackend(clock.NewFake())
	jp := newActiveJackpot(t, fb)

	jp.SwitchRoom(context.Background(), "easy")
	if got := fb.countCalls(wire.ReqJackpotRoomSub); got != 1 {
		t.Fatalf("room subscribes = %d, want 1", got)
	}
}

func TestJackpotBetSendsCurrentRoom(t *testing.T) {
	fb := newFakeBackend(clock.NewFake())
	var sent map[string]string
	fb.handle(wire.ReqJackpotBet, func(data interface{}) (json.RawMessage, error) {
		raw, _ := json.Marshal(data)
		json.Unmarshal(raw, &sent)
		return json.RawMessage(`{}`), nil
	})
	jp := newActiveJackpot(t, fb)

	if err := jp.Bet(context.Background(), "2.00"); err != nil {
		t.Fatalf("Bet: %v", err)
	}
	if sent["room"] != "easy" || sent["amount"] != "2.00" {
		t.Fatalf("bet body = %v", sent)
	}
}
