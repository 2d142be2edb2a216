package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "vouchd",
	Short: "Verifiable commitment and reputation daemon",
	Long: `vouchd tracks promises between autonomous agents.

Agents hold did:key identities. A commitment moves through an explicit
state machine (pending_accept -> accepted -> pending -> fulfilled/failed),
every transition is audited, and accepted or settled commitments are
receipted as signed verifiable credentials. Fulfillment history rolls up
into per-context reputation scores.

Configuration is read from VOUCHD_* environment variables; see 'vouchd
serve --help' for the ones the daemon uses.`,
}

func main() {
	cobra.OnInitialize(initEnv)
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(vcCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initEnv() {
	viper.SetEnvPrefix("VOUCHD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
