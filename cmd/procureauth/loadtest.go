package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	mathrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/procureauth"
	"github.com/MrEthical07/procureauth/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var loadtestFlags struct {
	accounts    int
	concurrency int
	ops         int
	redisAddr   string
}

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Measure validate and refresh throughput against an in-memory deployment",
	Long: `Seed accounts into an in-memory sqlite store, log each one in and then
run a validate phase and a refresh-rotation phase with concurrent workers.
Revocations go to --redis-addr, REDIS_ADDR, or an embedded miniredis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := loadtestFlags
		if f.accounts <= 0 || f.concurrency <= 0 || f.ops <= 0 {
			return fmt.Errorf("accounts, concurrency and ops must be > 0")
		}
		return runLoadtest(cmd.Context(), cmd.OutOrStdout(), f.accounts, f.concurrency, f.ops, f.redisAddr)
	},
}

func init() {
	loadtestCmd.Flags().IntVar(&loadtestFlags.accounts, "accounts", 200, "number of accounts to seed")
	loadtestCmd.Flags().IntVar(&loadtestFlags.concurrency, "concurrency", 64, "number of concurrent workers")
	loadtestCmd.Flags().IntVar(&loadtestFlags.ops, "ops", 20000, "operations per phase")
	loadtestCmd.Flags().StringVar(&loadtestFlags.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR or miniredis is used")
	rootCmd.AddCommand(loadtestCmd)
}

type sessionState struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func runLoadtest(ctx context.Context, out io.Writer, accounts, concurrency, ops int, redisAddr string) error {
	if redisAddr == "" {
		redisAddr = os.Getenv("REDIS_ADDR")
	}
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("starting miniredis: %w", err)
		}
		defer mr.Close()
		redisAddr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", redisAddr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", redisAddr)
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() { _ = client.Close() }()

	db, err := store.Open(store.DriverSQLite, "file:loadtest?mode=memory&cache=shared")
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	s := store.New(db)
	if err := s.Migrate(ctx); err != nil {
		return err
	}

	engineCfg := procureauth.DefaultConfig()
	engineCfg.JWT.AccessSecret = randomSecret()
	engineCfg.JWT.RefreshSecret = randomSecret()
	engineCfg.JWT.MFASecret = randomSecret()
	engineCfg.Password.BcryptCost = 4
	engineCfg.Metrics.EnableLatencyHistograms = true
	engine, err := procureauth.New().
		WithConfig(engineCfg).
		WithRedis(client).
		WithCredentialStore(s).
		WithMFAStore(s).
		WithLogger(log).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	hash, err := engine.HashPassword("loadtest-password")
	if err != nil {
		return err
	}
	states := make([]sessionState, accounts)
	fmt.Fprintf(out, "seeding %d accounts...\n", accounts)
	startSeed := time.Now()
	for i := range states {
		loginID := fmt.Sprintf("load-%05d", i)
		if _, err := s.CreateAccount(ctx, store.NewAccount{LoginID: loginID, PasswordHash: hash}); err != nil {
			return fmt.Errorf("seeding %s: %w", loginID, err)
		}
		res, err := engine.Login(ctx, loginID, "loadtest-password", true)
		if err != nil {
			return fmt.Errorf("login %s: %w", loginID, err)
		}
		states[i].access, states[i].refresh = res.AccessToken, res.RefreshToken
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validate := runPhase(ops, concurrency, 7919, func(r *mathrand.Rand) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		token := st.access
		st.mu.Unlock()
		_, err := engine.ValidateAccess(ctx, token)
		return err
	})
	refresh := runPhase(ops, concurrency, 6151, func(r *mathrand.Rand) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		defer st.mu.Unlock()
		res, err := engine.Refresh(ctx, st.refresh)
		if err != nil {
			return err
		}
		st.access, st.refresh = res.AccessToken, res.RefreshToken
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validate)
	printStats(out, "refresh", refresh)
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return []byte(hex.EncodeToString(buf))
}

// runPhase spreads ops calls of op over concurrency workers and records the
// latency of each.
func runPhase(ops, concurrency int, seed int64, op func(*mathrand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mathrand.New(mathrand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
