package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// NewBlocksCmd creates the blocks command with list, add, and remove
// subcommands.
func NewBlocksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Manage blocked IP addresses",
		Long:  "List, add, or remove entries on the gateway's IP blocklist.",
	}
	cmd.AddCommand(newBlocksListCmd())
	cmd.AddCommand(newBlocksAddCmd())
	cmd.AddCommand(newBlocksRemoveCmd())
	return cmd
}

func newBlocksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List currently blocked IPs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient()
			if err != nil {
				return err
			}

			data, err := client.do(http.MethodGet, "/admin/blocks", nil)
			if err != nil {
				return fmt.Errorf("list blocks: %w", err)
			}

			var entries []struct {
				IP        string     `json:"ip"`
				Permanent bool       `json:"permanent"`
				UnblockAt *time.Time `json:"unblock_at"`
			}
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("decode blocks: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No blocked IPs.")
				return nil
			}
			for _, e := range entries {
				if e.Permanent {
					fmt.Printf("%s\tpermanent\n", e.IP)
				} else {
					fmt.Printf("%s\tuntil %s\n", e.IP, e.UnblockAt.Format(time.RFC3339))
				}
			}
			return nil
		},
	}
}

func newBlocksAddCmd() *cobra.Command {
	var ip string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Block an IP address",
		Long:  "Block an IP permanently, or for a bounded duration with --duration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ip == "" {
				return fmt.Errorf("--ip is required")
			}

			client, err := newAdminClient()
			if err != nil {
				return err
			}

			body := map[string]any{"ip": ip}
			if duration > 0 {
				body["duration_ms"] = duration.Milliseconds()
			}
			if _, err := client.do(http.MethodPost, "/admin/blocks", body); err != nil {
				return fmt.Errorf("block %s: %w", ip, err)
			}

			if duration > 0 {
				fmt.Printf("Blocked %s for %s.\n", ip, duration)
			} else {
				fmt.Printf("Blocked %s permanently.\n", ip)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ip, "ip", "", "IP address to block (required)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Block duration (e.g. 30m, 24h); omit for permanent")
	return cmd
}

func newBlocksRemoveCmd() *cobra.Command {
	var ip string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Unblock an IP address",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ip == "" {
				return fmt.Errorf("--ip is required")
			}

			client, err := newAdminClient()
			if err != nil {
				return err
			}

			if _, err := client.do(http.MethodDelete, "/admin/blocks/"+ip, nil); err != nil {
				return fmt.Errorf("unblock %s: %w", ip, err)
			}

			fmt.Printf("Unblocked %s.\n", ip)
			return nil
		},
	}
	cmd.Flags().StringVar(&ip, "ip", "", "IP address to unblock (required)")
	return cmd
}
