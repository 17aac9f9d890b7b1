package worker

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"farmhand/internal/pkg/logger"
	"farmhand/internal/ports"
)

type Deps struct {
	Pool        *pgxpool.Pool
	RDB         *redis.Client
	SP          ports.StorageProvider
	QueueName   string
	StorageRoot string
	AppRoot     string
	MaxAttempts int
	Log         *logger.Logger
}
