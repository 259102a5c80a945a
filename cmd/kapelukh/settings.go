package main

import "time"

type Settings struct {
	Port     int    `env:"PORT,default=8000"`
	BasePath string `env:"BASE_PATH,default="`

	JWTSecret       string        `env:"JWT_SECRET,required=true"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL,default=15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL,default=720h"`

	AdminUser         string `env:"ADMIN_USER,required=true"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH,required=true"`

	MongoURI      string `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE,default=kapelukh"`
	PostgresDSN   string `env:"POSTGRES_DSN,required=true"`

	TelegramWebhookSecret string `env:"TELEGRAM_WEBHOOK_SECRET"`

	LogEncoding string `env:"LOG_ENCODING,default=console"`
	LogLevel    string `env:"LOG_LEVEL,default=debug"`
}
