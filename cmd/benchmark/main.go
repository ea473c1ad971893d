package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/tarkah/mirror-caddy/config"
	"github.com/tarkah/mirror-caddy/metadata"
	"github.com/tarkah/mirror-caddy/model"
)

// Measures validator store throughput: N puts followed by N gets against the
// bbolt backend. Useful for sizing NoSync against large mirrors.
func main() {
	n := mustGetEnvInt("BENCH_ENTRIES", 100000)

	cfg := &config.BboltConfig{
		Path:   getEnv("BENCH_DB_PATH", "./bench-validators.db"),
		Bucket: "validators",
		Mode:   0600,
		NoSync: mustGetEnvInt("BENCH_NO_SYNC", 1) == 1,
	}

	store, err := metadata.NewBboltStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	v := model.Validator{
		ETag:         `"686897696a7c876b7e"`,
		LastModified: "Wed, 21 Oct 2015 07:28:00 GMT",
	}

	start := time.Now()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("dir%02d/file%06d.bin", i%100, i)
		if err := store.Put(key, v); err != nil {
			log.Fatalf("Put failed at %d: %v", i, err)
		}
	}
	putElapsed := time.Since(start)
	fmt.Printf("Put: %d entries in %s (%.0f/s)\n", n, putElapsed, float64(n)/putElapsed.Seconds())

	start = time.Now()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("dir%02d/file%06d.bin", i%100, i)
		if _, err := store.Get(key); err != nil {
			log.Fatalf("Get failed at %d: %v", i, err)
		}
	}
	getElapsed := time.Since(start)
	fmt.Printf("Get: %d entries in %s (%.0f/s)\n", n, getElapsed, float64(n)/getElapsed.Seconds())

	count, err := store.Count()
	if err != nil {
		log.Fatalf("Count failed: %v", err)
	}
	fmt.Printf("Stored: %d entries\n", count)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// mustGetEnvInt tries to parse an environment variable as int, returns default if not set or invalid
func mustGetEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("Invalid int value for %s: %v. Using default: %d", key, err, def)
		return def
	}
	return i
}
