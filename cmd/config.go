package main

import "time"

type Config struct {
	NatsURL              string        `env:"NATS_URL,default=nats://localhost:4222"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	TokenDuration        time.Duration `env:"TOKEN_DURATION,default=24h"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=5s"`
	ReapInterval         time.Duration `env:"REAP_INTERVAL,default=25s"`
	SessionTimeout       time.Duration `env:"SESSION_TIMEOUT,default=60s"`
	HeartbeatSubject     string        `env:"HEARTBEAT_SUBJECT,default=gateway.status"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=5s"`
	CensoredWords        []string      `env:"CENSORED_WORDS"`
	CensoredChar         string        `env:"CENSORED_CHARACTER_REPLACEMENT,default=*"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
}
