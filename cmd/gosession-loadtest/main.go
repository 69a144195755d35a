package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
)

type tokenState struct {
	access  string
	refresh string
	mu      sync.Mutex
}

type benchStore struct {
	users map[string]*goSession.UserRecord
	byID  map[string]*goSession.UserRecord
}

func newBenchStore(count int) *benchStore {
	s := &benchStore{
		users: make(map[string]*goSession.UserRecord, count),
		byID:  make(map[string]*goSession.UserRecord, count),
	}
	for i := 0; i < count; i++ {
		u := &goSession.UserRecord{
			ID:           fmt.Sprintf("u-%d", i),
			Username:     fmt.Sprintf("user-%d@bench.local", i),
			PasswordHash: "bench-password",
		}
		s.users[u.Username] = u
		s.byID[u.ID] = u
	}
	return s
}

func (s *benchStore) FindByUsername(_ context.Context, username string) (*goSession.UserRecord, error) {
	return s.users[username], nil
}

func (s *benchStore) FindByID(_ context.Context, id string) (*goSession.UserRecord, error) {
	return s.byID[id], nil
}

func (s *benchStore) PermissionsFor(context.Context, string) ([]string, error) {
	return []string{"bench.read"}, nil
}

type plainVerifier struct{}

func (plainVerifier) Verify(password, encodedHash string) (bool, error) {
	return password == encodedHash, nil
}

func main() {
	var (
		users       = flag.Int("users", 10000, "number of users to seed and log in")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations for the authorize phase")
		refreshOps  = flag.Int("refresh-ops", 50000, "operations for the refresh phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *refreshOps <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, ops, and refresh-ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := newBenchStore(*users)

	engine, err := goSession.New().
		WithSecret([]byte("loadtest-secret-loadtest-secret-")).
		WithRedis(client).
		WithCredentialStore(store).
		WithPermissionSource(store).
		WithPasswordVerifier(plainVerifier{}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]tokenState, *users)
	fmt.Printf("logging in %d users...\n", *users)
	startSeed := time.Now()
	for i := 0; i < *users; i++ {
		result, err := engine.Login(ctx, fmt.Sprintf("user-%d@bench.local", i), "bench-password")
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = tokenState{access: result.AccessToken, refresh: result.RefreshToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authorizeStats := runAuthorizePhase(ctx, engine, states, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, states, *refreshOps, *concurrency)

	fmt.Println("---- results ----")
	printStats("authorize", authorizeStats)
	printStats("refresh", refreshStats)
}

func runAuthorizePhase(ctx context.Context, engine *goSession.Engine, states []tokenState, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(states))
				state := &states[idx]

				state.mu.Lock()
				token := state.access
				state.mu.Unlock()

				t0 := time.Now()
				_, err := engine.Authorize(ctx, token, "bench.read")
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
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runRefreshPhase(ctx context.Context, engine *goSession.Engine, states []tokenState, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(states))
				state := &states[idx]

				// Rotation is single-use, so each state's refresh token is held
				// under its own lock for the duration of the call.
				state.mu.Lock()
				t0 := time.Now()
				result, err := engine.Refresh(ctx, state.refresh)
				d := time.Since(t0)
				if err == nil {
					state.access = result.AccessToken
					state.refresh = result.RefreshToken
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
