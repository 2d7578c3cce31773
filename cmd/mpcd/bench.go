package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/mpc/pkg/pool"
)

func runBench(cmd *cobra.Command, args []string) error {
	c, err := loadCluster()
	if err != nil {
		return err
	}
	cluster := c.PartyIDs()
	threshold := c.Threshold()

	p := pool.NewPool(0)
	start := time.Now()
	var mu sync.Mutex
	var totalMessages int

	err = p.Parallelize(context.Background(), iterations, func(ctx context.Context, i int) error {
		_, metrics, err := runDemoOnce(cluster, threshold)
		if err != nil {
			return err
		}
		mu.Lock()
		totalMessages += metrics.MessagesSent
		mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("mpcd: bench run: %w", err)
	}
	elapsed := time.Since(start)
	fmt.Fprintf(cmd.OutOrStdout(), "%d runs in %s (%.1f runs/sec), %d total messages, %d workers\n",
		iterations, elapsed, float64(iterations)/elapsed.Seconds(), totalMessages, p.Workers())
	return nil
}
