// Package wire builds the adapters both binaries share from Config.
package wire

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/supabase-community/supabase-go"

	"caffio/internal/adapters/mapbox"
	"caffio/internal/adapters/memcache"
	redisad "caffio/internal/adapters/redis"
	sbad "caffio/internal/adapters/supabase"
	"caffio/internal/domain"
	"caffio/internal/shared"
	mysqlrepo "caffio/internal/storage/mysql"
)

// Store is the café repository plus whatever image store the driver offers.
// Images is nil for the mysql driver unless Supabase storage is configured too.
type Store struct {
	Repo   domain.CafeRepository
	Images domain.ImageStore
	close  func() error
}

func (s Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func OpenStore(ctx context.Context, cfg shared.Config) (Store, error) {
	var sb *supabase.Client
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		c, err := sbad.NewClient(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return Store{}, err
		}
		sb = c
	}

	var st Store
	switch cfg.StoreDriver {
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return Store{}, fmt.Errorf("sql.Open: %w", err)
		}
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			_ = db.Close()
			return Store{}, fmt.Errorf("db ping: %w", err)
		}
		log.Info().Msg("database connection ok")
		st = Store{Repo: mysqlrepo.New(db), close: db.Close}
	case "supabase", "":
		if sb == nil {
			return Store{}, fmt.Errorf("STORE_DRIVER=supabase needs SUPABASE_URL and SUPABASE_SERVICE_KEY")
		}
		st = Store{Repo: sbad.NewCafeRepo(sb)}
	default:
		return Store{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if sb != nil {
		st.Images = sbad.NewImageStore(sb.Storage, cfg.ImageBucket)
	} else {
		log.Warn().Msg("image uploads disabled: supabase storage is not configured")
	}
	return st, nil
}

// OpenCache returns Redis when REDIS_ADDR is set and reachable, else an in-process cache.
func OpenCache(ctx context.Context, cfg shared.Config) domain.Cache {
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := rc.Ping(pctx)
		if err == nil {
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache ok")
			return rc
		}
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, using in-process cache")
		_ = rc.Close()
	}
	return memcache.New(cfg.CacheTTL)
}

func OpenGeocoder(cfg shared.Config) (*mapbox.Client, error) {
	return mapbox.New(mapbox.Options{
		BaseURL:     cfg.MapboxBase,
		Token:       cfg.MapboxToken,
		RPS:         cfg.MapboxRPS,
		MaxAttempts: cfg.MapboxMaxAttempts,
		Timeout:     cfg.MapboxTimeout,
		Profile:     cfg.MatrixProfile,
	})
}
