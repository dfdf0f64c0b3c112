package wire

import "encoding/json"

// Request type names consumed by the stores.
const (
	ReqAuthLogin    = "auth.login"
	ReqAuthRegister = "auth.register"
	ReqAuthRefresh  = "auth.refresh"
	ReqAuthLogout   = "auth.logout"
	ReqAuthMe       = "auth.me"

	ReqBalanceGet = "wallet.balance.get"

	ReqDiceBet      = "dice.bet"
	ReqDiceSub      = "dice.subscribe"
	ReqDiceSnapshot = "dice.snapshot.get"

	ReqCrashSub     = "crash.subscribe"
	ReqCrashBet     = "crash.bet"
	ReqCrashCashout = "crash.cashout"

	ReqWheelSub = "wheel.subscribe"
	ReqWheelBet = "wheel.bet"

	ReqJackpotRoomSub = "jackpot.room.subscribe"
	ReqJackpotBet     = "jackpot.bet"

	ReqCoinflipSub    = "coinflip.subscribe"
	ReqCoinflipCreate = "coinflip.create"
	ReqCoinflipJoin   = "coinflip.join"

	ReqBattleSub = "battle.subscribe"
	ReqBattleBet = "battle.bet"

	ReqChatSub      = "chat.subscribe"
	ReqChatHistory  = "chat.history"
	ReqChatOnline   = "chat.online"
	ReqChatUserCard = "chat.userCard"
	ReqChatSend     = "chat.send"
)

// Push event type names produced by the server.
const (
	EvBalanceUpdated = "wallet.balance.updated"

	EvCrashTimer        = "crash.timer"
	EvCrashNewRound     = "crash.newRound"
	EvCrashTick         = "crash.tick"
	EvCrashBetsSnapshot = "crash.bets.snapshot"

	EvWheelTimer    = "wheel.timer"
	EvWheelNewRound = "wheel.newRound"
	EvWheelSlider   = "wheel.slider"
	EvWheelBet      = "wheel.bet"

	EvJackpotTimer    = "jackpot.timer"
	EvJackpotNewRound = "jackpot.newRound"
	EvJackpotSlider   = "jackpot.slider"
	EvJackpotBet      = "jackpot.bet"

	EvBattleTimer   = "battle.timer"
	EvBattleNewGame = "battle.newGame"
	EvBattleSlider  = "battle.slider"
	EvBattleBet     = "battle.bet"

	EvCoinflipCreated  = "coinflip.created"
	EvCoinflipResolved = "coinflip.resolved"

	EvChatMessage = "chat.message"
	EvChatOnline  = "chat.online"
	EvChatDeleted = "chat.deleted"
	EvChatCleared = "chat.cleared"
)

// Balance is pushed with mutation responses and wallet.balance.updated events.
// Amounts are decimal strings with two places.
type Balance struct {
	Main  string `json:"main"`
	Bonus string `json:"bonus"`
}

// BalanceUpdate is the wallet.balance.updated payload.
type BalanceUpdate struct {
	Balance      Balance `json:"balance"`
	StateVersion int64   `json:"stateVersion"`
}

// Identity is the auth.me / auth.login response payload.
type Identity struct {
	UserID       string  `json:"userId"`
	Name         string  `json:"name"`
	Avatar       string  `json:"avatar,omitempty"`
	Balance      Balance `json:"balance"`
	AccessToken  string  `json:"accessToken,omitempty"`
	RefreshToken string  `json:"refreshToken,omitempty"`
}

// Bet is one participant entry in a round, uniform across games.
type Bet struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Amount string `json:"amount"`
	Side   string `json:"side,omitempty"` // chosen side/color/team, game-specific
}

// Event is a decoded push frame handed to bus subscribers.
type Event struct {
	Type         string
	Data         json.RawMessage
	EventID      string
	StateVersion int64
}
