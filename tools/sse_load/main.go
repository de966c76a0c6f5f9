// Command sse_load opens many concurrent subscriptions to the snapshot stream
// and reports connection and per-event-type counters.
package main

import (
	"bufio"
	"context"
	"flag"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	heartbeats  atomic.Int64

	mu     sync.Mutex
	events map[string]int64
}

func (c *counters) event(name string) {
	c.mu.Lock()
	c.events[name]++
	c.mu.Unlock()
}

func (c *counters) fields() []zap.Field {
	c.mu.Lock()
	byKind := make(map[string]int64, len(c.events))
	for k, v := range c.events {
		byKind[k] = v
	}
	c.mu.Unlock()

	return []zap.Field{
		zap.Int64("connected", c.connected.Load()),
		zap.Int64("connect_errs", c.connectErrs.Load()),
		zap.Int64("stream_errs", c.streamErrs.Load()),
		zap.Int64("heartbeats", c.heartbeats.Load()),
		zap.Any("events", byKind),
	}
}

func main() {
	var (
		targetURL   string
		connections int
		duration    time.Duration
		connRate    float64
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/api/performance/snapshots/stream", "SSE endpoint URL")
	flag.IntVar(&connections, "conns", 1000, "number of concurrent connections to open")
	flag.DurationVar(&duration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.Float64Var(&connRate, "rate", 500, "new connections per second")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if connections <= 0 || connRate <= 0 {
		logger.Fatal("conns and rate must be positive", zap.Int("conns", connections), zap.Float64("rate", connRate))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	logger.Info("starting SSE load",
		zap.String("url", targetURL),
		zap.Int("conns", connections),
		zap.Duration("duration", duration),
		zap.Float64("rate", connRate))

	c := &counters{events: make(map[string]int64)}
	limiter := rate.NewLimiter(rate.Limit(connRate), 1)
	start := time.Now()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("status", append(c.fields(), zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))...)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < connections; i++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, targetURL, c)
		}()
	}

	wg.Wait()
	logger.Info("done", append(c.fields(), zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))...)
}

func subscribe(ctx context.Context, client *http.Client, url string, c *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return
	}
	c.connected.Add(1)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				c.streamErrs.Add(1)
			}
			return
		}
		switch {
		case strings.HasPrefix(line, ":"):
			c.heartbeats.Add(1)
		case strings.HasPrefix(line, "event: "):
			c.event(strings.TrimSpace(strings.TrimPrefix(line, "event: ")))
		}
	}
}
