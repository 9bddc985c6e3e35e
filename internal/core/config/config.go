// Package config loads the tile server's settings from the
// environment, following the teacher's getenv/getint/getduration
// pattern rather than a flags or file-based config layer.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gbif/mvt-tile-server/pkg/metawatch/kafka"
)

// Config is every setting the tile server reads at startup. Nothing
// here is hot-reloaded except the table mapping itself, which goes
// through the metastore watcher rather than this struct.
type Config struct {
	Addr      string
	AdminAddr string
	LogLevel  string

	RedisAddr      string
	RedisPoolSize  int
	StoreSaltMod   int
	StoreL1Size    int
	StoreWorkers   int
	StoreOpTimeout time.Duration

	TileSize          int
	BufferSize        int
	DefaultHexPerTile int
	DefaultSquareSize int
	DefaultMinYears   int

	SearchBackendURL string
	SearchTimeout    time.Duration

	Tables         map[string]string
	MetastoreWatch kafka.Config

	BuildVersion string
}

func FromEnv() Config {
	return Config{
		Addr:      getenv("ADDR", ":8090"),
		AdminAddr: getenv("ADMIN_ADDR", ":8091"),
		LogLevel:  getenv("LOG_LEVEL", "info"),

		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisPoolSize:  getint("REDIS_POOL_SIZE", 16),
		StoreSaltMod:   getint("STORE_SALT_MODULUS", 8),
		StoreL1Size:    getint("STORE_L1_CACHE_SIZE", 4096),
		StoreWorkers:   getint("STORE_FANOUT_WORKERS", 8),
		StoreOpTimeout: getduration("STORE_OP_TIMEOUT", 500*time.Millisecond),

		TileSize:          getint("TILE_SIZE", 4096),
		BufferSize:        getint("TILE_BUFFER_SIZE", 256),
		DefaultHexPerTile: getint("DEFAULT_HEX_PER_TILE", 35),
		DefaultSquareSize: getint("DEFAULT_SQUARE_SIZE", 64),
		DefaultMinYears:   getint("DEFAULT_MIN_YEARS", 2),

		SearchBackendURL: getenv("SEARCH_BACKEND_URL", "http://localhost:9200/occurrence/_search"),
		SearchTimeout:    getduration("SEARCH_TIMEOUT", 5*time.Second),

		Tables:         parseTableMap(getenv("MAP_TABLES", "occurrence=tiles_occurrence,taxon=tiles_taxon")),
		MetastoreWatch: kafka.FromEnv(),

		BuildVersion: getenv("BUILD_VERSION", ""),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parseTableMap reads "logical=physical,logical=physical" pairs, the
// Static metastore seed used both standalone and as the Watched
// metastore's fallback before its first update.
func parseTableMap(s string) map[string]string {
	out := map[string]string{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k, v := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
