package fedctl

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <workflow-id>",
	Short: "Fetch the current status of a workflow from a running Gateway",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(gatewayAddr + "/v1/workflows/" + args[0])
	if err != nil {
		return fmt.Errorf("fetching status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %s: %s", resp.Status, body)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(body))
	return nil
}
