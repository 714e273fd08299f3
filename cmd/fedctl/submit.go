package fedctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	submitTenant       string
	submitWorkflowType string
)

var submitCmd = &cobra.Command{
	Use:   "submit <intent text>",
	Short: "Submit a natural-language intent to a running Gateway",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitTenant, "tenant", "", "tenant submitting this workflow (required)")
	submitCmd.Flags().StringVar(&submitWorkflowType, "workflow-type", "", "workflow_type hint, when the intent is ambiguous")
	_ = submitCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	body, err := json.Marshal(map[string]string{
		"tenant":        submitTenant,
		"intent":        args[0],
		"workflow_type": submitWorkflowType,
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(gatewayAddr+"/v1/workflows", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submitting intent: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("gateway returned %s: %s", resp.Status, respBody)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(respBody))
	return nil
}
