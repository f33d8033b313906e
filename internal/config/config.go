package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp   string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env-default:"8080"`
	OpsToken string `yaml:"ops_token" env:"OPS_TOKEN" env-default:""`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env-default:"luckydrop"`
}

type TelegramConfig struct {
	ApiKey    string `yaml:"api_key" env:"BOT_TOKEN" env-default:""`
	AdminId   int64  `yaml:"admin_id" env:"ADMIN_ID" env-default:"0"`
	ChannelId int64  `yaml:"channel_id" env:"MAIN_CHANNEL_ID" env-default:"0"`
}

// PotConfig is the full tunable surface of the daily draw.
// Hours are in the configured timezone; times are stored in UTC.
type PotConfig struct {
	Timezone           string  `yaml:"timezone" env-default:"Asia/Kolkata"`
	OpenHour           int     `yaml:"open_hour" env-default:"17"`
	CloseHour          int     `yaml:"close_hour" env-default:"19"`
	RevealDelayMinutes int     `yaml:"reveal_delay_minutes" env-default:"10"`
	MaxUsers           int     `yaml:"max_users" env-default:"30"`
	TicketPrice        float64 `yaml:"ticket_price" env-default:"50"`
	FirstPrize         float64 `yaml:"first_prize" env-default:"500"`
	SecondPrize        float64 `yaml:"second_prize" env-default:"200"`
	ThirdPrize         float64 `yaml:"third_prize" env-default:"100"`
	MinParticipants    int     `yaml:"min_participants" env-default:"2"`
	ReferralBonus      float64 `yaml:"referral_bonus" env-default:"10"`
	MaxBonusPerTicket  float64 `yaml:"max_bonus_per_ticket" env-default:"30"`
}

func (p *PotConfig) RevealDelay() time.Duration {
	return time.Duration(p.RevealDelayMinutes) * time.Minute
}

// Location resolves the configured timezone; defaults keep the pot on
// the reference zone when the name is unknown.
func (p *PotConfig) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Pot      PotConfig      `yaml:"pot"`
	Listen   Listen         `yaml:"listen"`
	Env      string         `yaml:"env" env-default:"local"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
