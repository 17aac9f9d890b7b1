package storage

import (
	"fmt"
	"os"

	"farmhand/internal/adapters/storage/localfs"
	"farmhand/internal/adapters/storage/s3"
	"farmhand/internal/worker/util"
)

func NewProvider() (Provider, error) {
	provider := os.Getenv("STORAGE_PROVIDER")
	if provider == "" {
		provider = "localfs"
	}

	switch provider {
	case "localfs":
		root := util.MustEnv("STORAGE_LOCAL_ROOT")
		return localfs.New(root), nil

	case "s3":
		return s3.New(s3.Config{
			Endpoint:  util.MustEnv("S3_ENDPOINT"),
			Region:    util.Env("S3_REGION", ""),
			AccessKey: util.MustEnv("S3_ACCESS_KEY"),
			SecretKey: util.MustEnv("S3_SECRET_KEY"),
			Bucket:    util.MustEnv("S3_BUCKET"),
			UseSSL:    util.BoolEnv("S3_USE_SSL", true),
		})

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", provider)
	}
}
