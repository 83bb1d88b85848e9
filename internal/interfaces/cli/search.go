package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/CureAnalytics/pkg/client"
	"github.com/turtacn/CureAnalytics/pkg/errors"
)

type searchOptions struct {
	server   string
	apiKey   string
	drug     string
	page     int
	pageSize int
	timeout  time.Duration
}

// NewSearchCmd queries a running API server for papers mentioning a drug.
func NewSearchCmd() *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:     "search",
		Short:   "Search stored papers by drug on an API server",
		Example: "  cureanalytics search --drug metformin --server http://localhost:8080",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			server, key := opts.server, opts.apiKey
			if cfg := cliCtx.Config; cfg != nil {
				if server == "" {
					server = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
				}
				if key == "" && len(cfg.Server.APIKeys) > 0 {
					key = cfg.Server.APIKeys[0]
				}
			}
			if server == "" {
				server = "http://localhost:8080"
			}

			c, err := client.New(server,
				client.WithAPIKey(key),
				client.WithTimeout(opts.timeout),
				client.WithUserAgent("cureanalytics-cli/"+Version))
			if err != nil {
				return err
			}
			res, err := c.Search(cmd.Context(), opts.drug, client.SearchOptions{Page: opts.page, PageSize: opts.pageSize})
			if err != nil {
				return explainAPIError(err)
			}
			return PrintResult(cmd, cliCtx.OutputFormat, resultView{res})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "", "API server base URL (default http://localhost:<server.port>)")
	f.StringVar(&opts.apiKey, "api-key", "", "API key (default first of server.api_keys)")
	f.StringVar(&opts.drug, "drug", "", "compound name")
	f.IntVar(&opts.page, "page", 1, "page number")
	f.IntVar(&opts.pageSize, "page-size", 20, "results per page")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	_ = cmd.MarkFlagRequired("drug")
	return cmd
}

// explainAPIError adds a hint for the failures a user can fix locally.
func explainAPIError(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.IsUnauthorized():
		return fmt.Errorf("%w (check --api-key)", err)
	case apiErr.IsRateLimited():
		return fmt.Errorf("%w (rate limited, try again later)", err)
	}
	return err
}
