package config

import (
	log2 "log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joinguard/joinguard/common"
	"github.com/joinguard/joinguard/db"
	"github.com/joinguard/joinguard/pkg/log"
	"github.com/stevenroose/gonfig"
)

type Params struct {
	Address                string `id:"address" short:"a" default:"0.0.0.0:8912" desc:"Listening address of the ops API"`
	Config                 string `id:"config" short:"c" default:"$HOME/.config/joinguard" desc:"Joinguard configuration directory"`
	BotToken               string `id:"bot-token" desc:"Telegram bot token"`
	ChatID                 int64  `id:"chat-id" desc:"Identifier of the guarded chat"`
	AdminIDs               string `id:"admin-ids" desc:"Comma-separated Telegram user ids of the admins"`
	MinAccountAgeDays      int    `id:"min-account-age-days" default:"30" desc:"Accounts younger than this are rejected without a challenge"`
	MaxCaptchaAttempts     int    `id:"max-captcha-attempts" default:"3" desc:"Wrong answers allowed before rejection"`
	HardCaptchaAttempts    int    `id:"hard-captcha-attempts" default:"1" desc:"Attempt budget for the hard captcha"`
	RiskScoreToHardCaptcha int    `id:"risk-score-to-hard-captcha" default:"4" desc:"Risk score at which the hard captcha is issued"`
	ChallengeTimeout       string `id:"challenge-timeout" default:"5m" desc:"Time a user has to solve the captcha"`
	RetentionDays          int    `id:"retention-days" default:"30" desc:"Days to keep resolved verification records"`
	LogLevel               string `id:"log-level" default:"info" desc:"Optional values: trace, debug, info, warn or error"`
	LogFile                string `id:"log-file" desc:"The path of log file"`
	LogMaxDays             int64  `id:"log-max-days" default:"3" desc:"Maximum number of days to keep log files"`
	LogDisableColor        bool   `id:"log-disable-color"`
	LogDisableTimestamp    bool   `id:"log-disable-timestamp"`
}

var (
	params           Params
	adminIDs         []int64
	challengeTimeout time.Duration
)

func initFunc() {
	err := gonfig.Load(&params, gonfig.Conf{
		FileDisable:       true,
		FlagIgnoreUnknown: false,
		EnvPrefix:         "GUARD_",
	})
	if err != nil {
		if !strings.HasPrefix(err.Error(), "unexpected word while parsing flags: '-test.") {
			log2.Fatal(err)
		}
	}
	params.Config, err = common.HomeExpand(params.Config)
	if err != nil {
		log2.Fatal(err)
	}
	params.LogFile, err = common.HomeExpand(params.LogFile)
	if err != nil {
		log2.Fatal(err)
	}
	if strings.Contains(params.Config, "$HOME") {
		if h, err := os.UserHomeDir(); err == nil {
			params.Config = strings.ReplaceAll(params.Config, "$HOME", h)
		}
	}
	params.Config = filepath.Join(
		filepath.Dir(params.Config),
		strings.ReplaceAll(filepath.Base(params.Config), ".", "_"),
	)
	if err := os.MkdirAll(params.Config, 0700); err != nil {
		log2.Fatal(err)
	}
	if params.MinAccountAgeDays < 0 {
		log2.Fatal("min-account-age-days must be >= 0")
	}
	if params.MaxCaptchaAttempts < 1 {
		log2.Fatal("max-captcha-attempts must be >= 1")
	}
	if params.HardCaptchaAttempts < 1 {
		log2.Fatal("hard-captcha-attempts must be >= 1")
	}
	if params.RiskScoreToHardCaptcha < 0 {
		log2.Fatal("risk-score-to-hard-captcha must be >= 0")
	}
	challengeTimeout, err = time.ParseDuration(params.ChallengeTimeout)
	if err != nil || challengeTimeout <= 0 {
		log2.Fatal("challenge-timeout must be a positive duration")
	}
	adminIDs, err = common.ParseInt64List(params.AdminIDs)
	if err != nil {
		log2.Fatal(err)
	}
	logWay := "console"
	if params.LogFile != "" {
		logWay = "file"
	}
	log.InitLog(logWay, params.LogFile, params.LogLevel, params.LogMaxDays, params.LogDisableColor, params.LogDisableTimestamp)
	db.InitDB(params.Config)
}

var once sync.Once

func GetConfig() *Params {
	once.Do(initFunc)
	return &params
}

// AdminIDList returns the parsed admin user ids.
func AdminIDList() []int64 {
	GetConfig()
	return adminIDs
}

// ChallengeTimeoutDuration returns the parsed challenge timeout.
func ChallengeTimeoutDuration() time.Duration {
	GetConfig()
	return challengeTimeout
}
