package cli

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/hookbridge/internal/core/config"
)

var resetBreakerCmd = &cobra.Command{
	Use:   "reset-breaker [dependency]",
	Short: "Force a circuit breaker on the running service back to closed",
	Args:  cobra.ExactArgs(1),
	Run:   runResetBreaker,
}

func init() {
	rootCmd.AddCommand(resetBreakerCmd)
}

func runResetBreaker(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	endpoint := fmt.Sprintf("http://localhost:%d/admin/breakers/reset?dependency=%s",
		cfg.Server.Port, url.QueryEscape(args[0]))

	resp, err := http.Post(endpoint, "application/json", nil)
	if err != nil {
		fmt.Printf("Failed to reach service: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Reset failed (%d): %s\n", resp.StatusCode, body)
		os.Exit(1)
	}
	fmt.Printf("Breaker %s reset\n", args[0])
}
