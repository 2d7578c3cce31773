// Command mpcd is a thin CLI driver over the compilation-and-execution
// packages, so the module is runnable end to end: one cobra.Command per
// top-level operation, flags on each leaf.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	clusterFile string

	rootCmd = &cobra.Command{
		Use:   "mpcd",
		Short: "Driver for the MPC bytecode compilation and execution pipeline",
	}

	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Deal a secret into per-party Shamir shares",
		RunE:  runKeygen,
	}

	identityKeygenCmd = &cobra.Command{
		Use:   "identity-keygen",
		Short: "Generate a secp256k1 node identity keypair for every cluster member",
		RunE:  runIdentityKeygen,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Compile and run a small demo program across every party locally",
		RunE:  runSimulate,
	}

	offsetsCmd = &cobra.Command{
		Use:   "offsets",
		Short: "Report a fresh preprocessing offset manager's counters",
		RunE:  runOffsets,
	}

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Repeat the demo simulation and report throughput",
		RunE:  runBench,
	}

	signCmd = &cobra.Command{
		Use:   "sign",
		Short: "Threshold-sign a message across every party locally",
		RunE:  runSign,
	}

	preprocessCmd = &cobra.Command{
		Use:   "preprocess",
		Short: "Produce a batch of random preprocessing shares across every party locally",
		RunE:  runPreprocess,
	}

	secretValue     uint64
	outputDir       string
	iterations      int
	signMessage     string
	preprocessBatch int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&clusterFile, "cluster", "c", "", "Cluster YAML file (required)")
	rootCmd.MarkPersistentFlagRequired("cluster")

	keygenCmd.Flags().Uint64VarP(&secretValue, "secret", "s", 0, "Secret integer to deal")
	keygenCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory to write per-party share files into")

	identityKeygenCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory to write per-party identity files into")

	benchCmd.Flags().IntVarP(&iterations, "iterations", "n", 10, "Number of simulation runs")

	signCmd.Flags().StringVarP(&signMessage, "message", "m", "", "Message to sign")
	signCmd.MarkFlagRequired("message")

	preprocessCmd.Flags().IntVarP(&preprocessBatch, "batch", "b", 8, "Elements to produce per pool")

	rootCmd.AddCommand(keygenCmd, identityKeygenCmd, simulateCmd, offsetsCmd, benchCmd, signCmd, preprocessCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mpcd:", err)
		os.Exit(1)
	}
}
