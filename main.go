package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rentguard",
	Short: "Rental contract sanitizer and risk scorer",
	Long: `rentguard extracts rental contracts from PDF, masks personal data,
segments the text into clauses and scores the risks an external reviewer
flags against Israeli rental law.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(serveCmd, sanitizeCmd, scoreCmd, watchCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
