package mock

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	MIN_MULTIPLIER = 1.00
	MAX_MULTIPLIER = 1000000.00
	HOUSE_EDGE     = 0.01 // 1%
)

// GenerateSeed creates a cryptographically secure random seed.
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// FairHash is the pre-round commitment to the server seed. Clients display it
// and can verify the revealed seed against it after the round.
func FairHash(seed string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}

// hashFraction maps HMAC-SHA256(serverSeed, clientSeed:nonce) onto [0,1).
func hashFraction(serverSeed, clientSeed string, nonce int) float64 {
	data := fmt.Sprintf("%s:%d", clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(data))
	hashHex := hex.EncodeToString(h.Sum(nil))

	// First 16 hex characters: 64 bits.
	i := new(big.Int)
	i.SetString(hashHex[:16], 16)

	const MAX_VALUE_F64 = 18446744073709551616.0
	return float64(i.Uint64()) / MAX_VALUE_F64
}

// CrashPoint derives the round's crash multiplier from the committed seeds
// with an exponential distribution and a 1% instant-crash house edge.
func CrashPoint(serverSeed, clientSeed string, nonce int) float64 {
	rFloat := hashFraction(serverSeed, clientSeed, nonce)

	if rFloat < HOUSE_EDGE {
		return MIN_MULTIPLIER
	}

	crashValue := (100.0 - HOUSE_EDGE*100) / (100.0 - rFloat*100.0)
	finalMultiplier := float64(int(crashValue*100)) / 100.0

	if finalMultiplier < MIN_MULTIPLIER {
		return MIN_MULTIPLIER
	}
	if finalMultiplier > MAX_MULTIPLIER {
		return MAX_MULTIPLIER
	}
	return finalMultiplier
}

// DiceRoll derives a roll in [0,100) from the committed seeds.
func DiceRoll(serverSeed, clientSeed string, nonce int) float64 {
	roll := hashFraction(serverSeed, clientSeed, nonce) * 100.0
	return float64(int(roll*100)) / 100.0
}

// VerifyCrashPoint lets players check a revealed seed against the multiplier
// the round actually crashed at.
func VerifyCrashPoint(serverSeed, clientSeed string, nonce int, claimedMultiplier float64) bool {
	diff := CrashPoint(serverSeed, clientSeed, nonce) - claimedMultiplier
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.01
}
