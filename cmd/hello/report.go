package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/utkarsh5026/threadpool/internal/config"
	"github.com/utkarsh5026/threadpool/pool"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

func printBanner(cfg config.Config) {
	_, _ = bold.Println("hello: thread pool web server")

	root := cfg.Server.Root
	if root == "" {
		root = "(built-in pages)"
	}
	limit := "until interrupted"
	if cfg.Server.MaxConns > 0 {
		limit = strconv.Itoa(cfg.Server.MaxConns) + " connections"
	}

	fmt.Printf("  Address:   %s\n", cfg.Server.Addr)
	fmt.Printf("  Workers:   %d\n", cfg.Pool.Workers)
	fmt.Printf("  Pages:     %s\n", root)
	fmt.Printf("  Sleep:     %v\n", cfg.Server.Sleep)
	fmt.Printf("  Serving:   %s\n", limit)
	if cfg.Admin.Addr != "" {
		fmt.Printf("  Admin:     http://%s/stats\n", cfg.Admin.Addr)
	}
	fmt.Println()
}

func printSummary(accepted int64, stats pool.Stats, err error) {
	fmt.Println()
	_, _ = bold.Println("Workers")

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Worker", "Jobs", "Panics")
	for _, w := range stats.Workers {
		_ = table.Append(
			strconv.Itoa(w.ID),
			strconv.FormatInt(w.Executed, 10),
			strconv.FormatInt(w.Panicked, 10),
		)
	}
	if rerr := table.Render(); rerr != nil {
		_, _ = red.Println("Error rendering worker table")
	}

	fmt.Printf("  Accepted:  %d connections\n", accepted)
	fmt.Printf("  Completed: %d jobs\n", stats.Completed)

	switch {
	case err != nil:
		_, _ = red.Printf("  Drained with errors: %v\n", err)
	case stats.Live > 0:
		_, _ = yellow.Printf("  %d workers still running\n", stats.Live)
	default:
		_, _ = green.Println("  All workers shut down")
	}
}
