package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv 读 .env；生产环境没有该文件属正常
func LoadEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("load .env: %v", err)
	}
}
