package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// NewPoliciesCmd creates the policies command.
func NewPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List configured rate-limit tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient()
			if err != nil {
				return err
			}

			data, err := client.do(http.MethodGet, "/admin/policies", nil)
			if err != nil {
				return fmt.Errorf("list policies: %w", err)
			}

			var policies []struct {
				Name        string `json:"name"`
				WindowMS    int64  `json:"window_ms"`
				MaxRequests int    `json:"max_requests"`
				BlockForMS  int64  `json:"block_for_ms"`
				Message     string `json:"message"`
			}
			if err := json.Unmarshal(data, &policies); err != nil {
				return fmt.Errorf("decode policies: %w", err)
			}

			for _, p := range policies {
				window := time.Duration(p.WindowMS) * time.Millisecond
				fmt.Printf("%s: %d requests / %s", p.Name, p.MaxRequests, window)
				if p.BlockForMS > 0 {
					fmt.Printf(" (blocks for %s on rejection)", time.Duration(p.BlockForMS)*time.Millisecond)
				}
				fmt.Println()
			}
			return nil
		},
	}
}
