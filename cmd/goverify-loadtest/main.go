// Command goverify-loadtest drives the pipeline with concurrent legitimate
// and hostile attempts and reports latency percentiles per phase. Identity
// state is saved to Redis at the end so persistence cost is measured too.
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

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/biometric"
	"github.com/MrEthical07/goVerify/internal/rate"
	"github.com/MrEthical07/goVerify/password"
	"github.com/MrEthical07/goVerify/storage/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
)

const (
	loadSecret  = "load-test secret phrase"
	derivedSeed = "JBSWY3DPEHPK3PXPJBSWY3DP"
)

var template = []float64{0.12, 0.48, 0.33, 0.91, 0.27}

func main() {
	var (
		identities  = flag.Int("identities", 500, "number of identities to enroll")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 5000, "attempts per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gvload", "persistence key prefix")
		memoryKiB   = flag.Uint("argon2-memory", 8*1024, "argon2id memory cost in KiB")
		admission   = flag.Int("admission", 0, "per-identity attempts per minute through the Redis limiter; 0 disables")
	)
	flag.Parse()

	if *identities <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, and ops must be > 0")
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

	cfg := goVerify.DefaultConfig()
	cfg.Password.Memory = uint32(*memoryKiB)
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.SecondFactor.DerivedSkew = 1
	cfg.Metrics.EnableLatencyHistograms = true

	b := goVerify.New().WithConfig(cfg)
	if *admission > 0 {
		b.WithAdmissionLimiter(rate.NewRedis(client, rate.RedisConfig{
			MaxPerIdentity: *admission,
			Window:         time.Minute,
		}))
	}
	engine, err := b.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ids, err := enroll(ctx, engine, cfg.Password, *identities)
	if err != nil {
		fmt.Fprintf(os.Stderr, "enroll failed: %v\n", err)
		os.Exit(1)
	}

	legit := runPhase(ctx, engine, ids, *ops, *concurrency, legitimate)
	attack := runPhase(ctx, engine, ids, *ops, *concurrency, hostile)

	store := redisstore.NewStore(client, *prefix)
	t0 := time.Now()
	if err := engine.Save(ctx, store); err != nil {
		fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
		os.Exit(1)
	}
	saveTook := time.Since(t0)

	fmt.Println("---- results ----")
	printStats("legitimate", legit)
	printStats("hostile", attack)
	report := engine.Report()
	fmt.Printf("engine: attempts=%d authenticated=%d blocked=%d faulted=%d avg=%s\n",
		report.Metrics.TotalAttempts,
		report.Metrics.Successful,
		report.Metrics.Blocked,
		report.Metrics.Faulted,
		report.Metrics.AverageLatency.Round(time.Microsecond),
	)
	for _, st := range report.Stages {
		fmt.Printf("  %-16s rejections=%d\n", st.Stage, st.Rejections)
	}
	fmt.Printf("save: identities=%d took=%s\n", len(ids), saveTook.Round(time.Millisecond))
}

// enroll hashes the shared secret once and installs the digest for every
// identity so Argon2 cost is paid per attempt, not per enrollment.
func enroll(ctx context.Context, engine *goVerify.Engine, pc goVerify.PasswordConfig, n int) ([]string, error) {
	hasher, err := password.NewArgon2(password.Config{
		Memory:      pc.Memory,
		Time:        pc.Time,
		Parallelism: pc.Parallelism,
		SaltLength:  pc.SaltLength,
		KeyLength:   pc.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	digest, err := hasher.Hash(loadSecret)
	if err != nil {
		return nil, err
	}

	fmt.Printf("enrolling %d identities...\n", n)
	start := time.Now()
	ids := make([]string, n)
	for i := range ids {
		id := fmt.Sprintf("id-%d", i)
		ids[i] = id
		if err := engine.RegisterCredentialDigest(ctx, id, digest); err != nil {
			return nil, err
		}
		if err := engine.RegisterDerivedSecret(ctx, id, derivedSeed); err != nil {
			return nil, err
		}
		if err := engine.EnrollTemplate(ctx, id, biometric.Fingerprint, template); err != nil {
			return nil, err
		}
		if _, err := engine.ProvisionKeyLayers(ctx, id); err != nil {
			return nil, err
		}
	}
	fmt.Printf("enrolled in %s\n", time.Since(start).Round(time.Millisecond))
	return ids, nil
}

type requestFunc func(identity string, r *rand.Rand) goVerify.AuthRequest

func legitimate(identity string, _ *rand.Rand) goVerify.AuthRequest {
	code, _ := totp.GenerateCode(derivedSeed, time.Now())
	return goVerify.AuthRequest{
		Identity:     identity,
		Secret:       loadSecret,
		SecondFactor: &goVerify.SecondFactorProof{Kind: goVerify.ProofDerived, Code: code},
		Biometrics:   []goVerify.BiometricSample{{Modality: biometric.Fingerprint, Vector: template}},
	}
}

func hostile(identity string, r *rand.Rand) goVerify.AuthRequest {
	req := legitimate(identity, r)
	switch r.Intn(3) {
	case 0:
		req.Secret = fmt.Sprintf("guess-%08d", r.Intn(1e8))
	case 1:
		req.SecondFactor.Code = fmt.Sprintf("%06d", r.Intn(1e6))
	default:
		req.Biometrics[0].Vector = []float64{0.9, 0.1, 0.2, 0.05, 0.7}
	}
	return req
}

func runPhase(ctx context.Context, engine *goVerify.Engine, ids []string, ops, concurrency int, build requestFunc) phaseStats {
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
			wctx := goVerify.WithUserAgent(goVerify.WithClientIP(ctx, fmt.Sprintf("10.0.%d.%d", worker/256, worker%256)), "goverify-loadtest")
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				id := ids[r.Intn(len(ids))]
				t0 := time.Now()
				res, err := engine.Authenticate(wctx, build(id, r))
				d := time.Since(t0)
				if err != nil || !res.Authenticated {
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
	fmt.Printf("%s: ops=%d rejected=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
