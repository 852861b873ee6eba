package service

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/joinguard/joinguard/model"
)

// ChallengeGenerator produces verification puzzles and checks submitted
// answers. Implementations must not leak the answer through the payload.
type ChallengeGenerator interface {
	Generate(difficulty model.Difficulty) (*model.Challenge, error)
	Check(c *model.Challenge, answer string) bool
}

// MathChallengeGenerator issues small arithmetic puzzles with four
// multiple-choice options, one of which is the answer.
type MathChallengeGenerator struct{}

func (MathChallengeGenerator) Generate(difficulty model.Difficulty) (*model.Challenge, error) {
	var first, second, answer, noiseLimit int
	var op string
	if difficulty == model.DifficultyHard {
		first = 7 + rand.Intn(13)
		second = 3 + rand.Intn(11)
		op = []string{"+", "-", "*"}[rand.Intn(3)]
		noiseLimit = 20
	} else {
		first = 2 + rand.Intn(11)
		second = 1 + rand.Intn(9)
		op = []string{"+", "-"}[rand.Intn(2)]
		noiseLimit = 7
	}
	if op == "-" && second > first {
		first, second = second, first
	}
	switch op {
	case "+":
		answer = first + second
	case "-":
		answer = first - second
	default:
		answer = first * second
	}

	options := map[int]struct{}{answer: {}}
	for len(options) < 4 {
		options[answer+rand.Intn(2*noiseLimit+1)-noiseLimit] = struct{}{}
	}
	list := make([]int, 0, 4)
	for o := range options {
		list = append(list, o)
	}
	rand.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })

	token, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	return &model.Challenge{
		Token:      token,
		Question:   fmt.Sprintf("%d %s %d = ?", first, op, second),
		Options:    list,
		AnswerHash: model.HashAnswer(token, strconv.Itoa(answer)),
		Difficulty: difficulty,
		IssuedAt:   time.Now(),
	}, nil
}

func (MathChallengeGenerator) Check(c *model.Challenge, answer string) bool {
	if c == nil {
		return false
	}
	return c.CheckAnswer(answer)
}
