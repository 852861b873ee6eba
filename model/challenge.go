package model

import (
	"encoding/hex"
	"time"

	"github.com/joinguard/joinguard/common"
)

type Difficulty string

const (
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Challenge is a generator-produced puzzle. The raw answer is never stored;
// AnswerHash is sha256(answer, salted with the token).
type Challenge struct {
	Token      string
	Question   string
	Options    []int
	AnswerHash string
	Difficulty Difficulty
	IssuedAt   time.Time
}

func HashAnswer(token, answer string) string {
	h := common.Bytes2Sha256([]byte(answer), []byte(token))
	return hex.EncodeToString(h[:])
}

// CheckAnswer compares a submitted answer against the stored fingerprint.
func (c *Challenge) CheckAnswer(answer string) bool {
	return c.AnswerHash == HashAnswer(c.Token, answer)
}
