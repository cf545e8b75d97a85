package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// NewTestCmd creates the test command: a small smoke test that fires
// requests at an endpoint and reports the admission outcomes.
func NewTestCmd() *cobra.Command {
	var url string
	var count int

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Smoke-test rate limiting against an endpoint",
		Long:  "Fire sequential GET requests at an endpoint and report status codes and quota headers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				base := os.Getenv("ADMISSION_URL")
				if base == "" {
					base = "http://localhost:8080"
				}
				url = base + "/api/v1/status"
			}
			if count <= 0 {
				count = 10
			}

			client := &http.Client{Timeout: 10 * time.Second}
			allowed, limited, other := 0, 0, 0

			fmt.Printf("Sending %d requests to %s\n\n", count, url)
			for i := 0; i < count; i++ {
				resp, err := client.Get(url)
				if err != nil {
					return fmt.Errorf("request %d: %w", i+1, err)
				}
				remaining := resp.Header.Get("X-RateLimit-Remaining")
				retryAfter := resp.Header.Get("Retry-After")
				_ = resp.Body.Close()

				switch {
				case resp.StatusCode == http.StatusTooManyRequests:
					limited++
					fmt.Printf("  %3d: %d rate limited, Retry-After=%s\n", i+1, resp.StatusCode, retryAfter)
				case resp.StatusCode < 400:
					allowed++
					fmt.Printf("  %3d: %d allowed, remaining=%s\n", i+1, resp.StatusCode, remaining)
				default:
					other++
					fmt.Printf("  %3d: %d\n", i+1, resp.StatusCode)
				}
			}

			fmt.Printf("\nAllowed: %d  Limited: %d  Other: %d\n", allowed, limited, other)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Endpoint to test (default: $ADMISSION_URL/api/v1/status)")
	cmd.Flags().IntVar(&count, "count", 10, "Number of requests to send")
	return cmd
}
