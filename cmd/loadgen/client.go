package main

import (
	"bytes"
	"cmp"
	"fmt"
	"io"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/utkarsh5026/threadpool/internal/backoff"
)

// result is the outcome of one request.
type result struct {
	Path     string
	Status   string
	Latency  time.Duration
	Attempts int
	Err      error
}

type client struct {
	addr    string
	timeout time.Duration
	retries int

	// newRetry returns a fresh strategy for each request.
	newRetry func() backoff.Strategy
}

// do sends one raw GET for path, redialling up to c.retries times when the
// server refuses the connection.
func (c *client) do(path string) result {
	start := time.Now()
	res := result{Path: path}

	retry := c.newRetry()

	var conn net.Conn
	var err error
	for {
		res.Attempts++
		conn, err = net.DialTimeout("tcp", c.addr, c.timeout)
		if err == nil || res.Attempts > c.retries {
			break
		}
		time.Sleep(retry.NextDelay(res.Attempts - 1))
	}
	if err != nil {
		res.Err = fmt.Errorf("dial %s: %w", c.addr, err)
		res.Latency = time.Since(start)
		return res
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := fmt.Fprintf(conn, "GET %s HTTP/1.1\r\nHost: %s\r\n\r\n", path, c.addr); err != nil {
		res.Err = fmt.Errorf("write request: %w", err)
		res.Latency = time.Since(start)
		return res
	}

	body, err := io.ReadAll(conn)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("read response: %w", err)
	}
	res.Status = statusLine(body)
	return res
}

func statusLine(resp []byte) string {
	line, _, _ := bytes.Cut(resp, []byte("\r\n"))
	return string(line)
}

// pathFor picks the path of request i: every sleepEvery-th request hits
// /sleep, every missEvery-th an unknown path, the rest /.
func pathFor(i, sleepEvery, missEvery int) string {
	n := i + 1
	switch {
	case sleepEvery > 0 && n%sleepEvery == 0:
		return "/sleep"
	case missEvery > 0 && n%missEvery == 0:
		return "/missing"
	default:
		return "/"
	}
}

// summary aggregates the results for one path.
type summary struct {
	Path     string
	Requests int
	Statuses map[string]int
	Failed   int
	P50      time.Duration
	P95      time.Duration
	Max      time.Duration
}

func summarize(results []result) []summary {
	byPath := lo.GroupBy(results, func(r result) string { return r.Path })

	out := make([]summary, 0, len(byPath))
	for path, rs := range byPath {
		ok := lo.Filter(rs, func(r result, _ int) bool { return r.Err == nil })
		latencies := lo.Map(ok, func(r result, _ int) time.Duration { return r.Latency })
		slices.Sort(latencies)

		out = append(out, summary{
			Path:     path,
			Requests: len(rs),
			Statuses: lo.CountValuesBy(ok, func(r result) string { return r.Status }),
			Failed:   len(rs) - len(ok),
			P50:      percentile(latencies, 0.50),
			P95:      percentile(latencies, 0.95),
			Max:      percentile(latencies, 1),
		})
	}

	slices.SortFunc(out, func(a, b summary) int {
		return cmp.Or(b.Requests-a.Requests, strings.Compare(a.Path, b.Path))
	})
	return out
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
