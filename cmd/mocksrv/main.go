package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"punter/internal/mock"
)

func main() {
	server := mock.NewServer()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	port := getEnv("PORT", "8080")
	go func() {
		log.Printf("[MOCK] Listening on :%s (ws://localhost:%s/ws)", port, port)
		if err := server.Listen(":" + port); err != nil {
			log.Fatalf("[MOCK] Listen failed: %v", err)
		}
	}()

	<-done
	if err := server.Shutdown(); err != nil {
		log.Printf("[MOCK] Shutdown error: %v", err)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
