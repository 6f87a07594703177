package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hospfit",
	Short: "Bayesian hospital progression model fitting",
	Long: `hospfit fits an age-structured hospital disease-progression model
with an adaptive, temperature-coupled Metropolis sampler. Among other
features:

  - Per-age transition probability and duration curves via cubic splines
  - Robbins-Monro adaptive proposal bandwidths
  - Parallel tempering across temperature rungs
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
