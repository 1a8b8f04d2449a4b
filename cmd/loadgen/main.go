// Command loadgen fires raw GET requests at the hello server, each one as a
// job on its own thread pool, and reports latency per path.
//
//	loadgen -n 40 -c 8 -sleep-every 5
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/utkarsh5026/threadpool/internal/backoff"
	"github.com/utkarsh5026/threadpool/pool"
)

var (
	bold = color.New(color.Bold)
	red  = color.New(color.FgRed)
)

func main() {
	addrFlag := flag.String("addr", "127.0.0.1:7878", "server address")
	requestsFlag := flag.Int("n", 20, "total number of requests")
	workersFlag := flag.Int("c", 4, "number of requests in flight (pool size)")
	rateFlag := flag.Float64("rate", 0, "maximum requests started per second (0 = unlimited)")
	sleepEveryFlag := flag.Int("sleep-every", 5, "send GET /sleep for every Nth request (0 = never)")
	missEveryFlag := flag.Int("miss-every", 7, "request an unknown path for every Nth request (0 = never)")
	timeoutFlag := flag.Duration("timeout", 10*time.Second, "per-request dial and I/O timeout")
	retriesFlag := flag.Int("retries", 3, "redial attempts when the server refuses a connection")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()

	opts := []pool.Option{pool.WithLogger(logger)}
	if *rateFlag > 0 {
		opts = append(opts, pool.WithRateLimit(*rateFlag, 1))
	}

	p, err := pool.New(*workersFlag, opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot start pool")
	}

	c := &client{
		addr:     *addrFlag,
		timeout:  *timeoutFlag,
		retries:  *retriesFlag,
		newRetry: func() backoff.Strategy {
			return backoff.New(backoff.Decorrelated, 50*time.Millisecond, 2*time.Second, 0)
		},
	}

	_, _ = bold.Printf("Sending %d requests to %s with %d workers\n\n", *requestsFlag, *addrFlag, *workersFlag)

	bar := makeProgressBar(*requestsFlag)
	results := make([]result, *requestsFlag)

	start := time.Now()
	for i := range *requestsFlag {
		path := pathFor(i, *sleepEveryFlag, *missEveryFlag)
		err := p.ExecuteFunc(func() {
			results[i] = c.do(path)
			_ = bar.Add(1)
		})
		if err != nil {
			logger.Error().Err(err).Int("request", i).Msg("cannot queue request")
		}
	}

	if err := p.Close(); err != nil {
		logger.Error().Err(err).Msg("pool drained with errors")
	}
	elapsed := time.Since(start)
	_ = bar.Finish()

	renderResults(summarize(results), elapsed)
	renderErrors(results)
}

func makeProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Requests"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func renderResults(summaries []summary, elapsed time.Duration) {
	fmt.Println()
	_, _ = bold.Println("RESULTS")

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Path", "Requests", "Statuses", "Failed", "P50", "P95", "Max")

	for _, s := range summaries {
		_ = table.Append(
			s.Path,
			strconv.Itoa(s.Requests),
			formatStatuses(s.Statuses),
			strconv.Itoa(s.Failed),
			s.P50.Round(time.Millisecond).String(),
			s.P95.Round(time.Millisecond).String(),
			s.Max.Round(time.Millisecond).String(),
		)
	}

	if err := table.Render(); err != nil {
		_, _ = red.Println("Error rendering results table")
	}
	fmt.Printf("\nTotal time: %v\n", elapsed.Round(time.Millisecond))
}

func formatStatuses(statuses map[string]int) string {
	lines := make([]string, 0, len(statuses))
	for status, n := range statuses {
		if status == "" {
			status = "(empty)"
		}
		lines = append(lines, fmt.Sprintf("%s x%d", status, n))
	}
	sort.Strings(lines)
	return strings.Join(lines, ", ")
}

func renderErrors(results []result) {
	for i, r := range results {
		if r.Err != nil {
			_, _ = red.Printf("request %d (%s) failed after %d attempts: %v\n", i, r.Path, r.Attempts, r.Err)
		}
	}
}
