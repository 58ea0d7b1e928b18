package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/tellor-io/layer-explorer/explorerClient/config"
	"github.com/tellor-io/layer-explorer/explorerClient/constant"
)

// Output formats
const (
	OutputFormatYAML = "yaml"
	OutputFormatJSON = "json"
)

// ErrorResponse represents an error response from HTTP API
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type queryFlags struct {
	output string
	port   int
	source string
	limit  int
	offset int
}

func (f *queryFlags) register(cmd *cobra.Command, paged bool) {
	cmd.Flags().StringVarP(&f.output, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	cmd.Flags().IntVar(&f.port, "port", 0, "Query server port (default: from config)")
	cmd.Flags().StringVar(&f.source, "source", "", "Force a data source (graphql|rpc)")
	if paged {
		cmd.Flags().IntVar(&f.limit, "limit", 0, "Page size")
		cmd.Flags().IntVar(&f.offset, "offset", 0, "Page offset")
	}
}

func (f *queryFlags) values() url.Values {
	v := url.Values{}
	if f.source != "" {
		v.Set("source", f.source)
	}
	if f.limit != 0 {
		v.Set("limit", strconv.Itoa(f.limit))
	}
	if f.offset != 0 {
		v.Set("offset", strconv.Itoa(f.offset))
	}
	return v
}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Query a running explorerd",
	}

	cmd.AddCommand(
		simpleQueryCmd("health", "Aggregated source health", "/health", false),
		simpleQueryCmd("status", "Source breakers and endpoint pools", "/api/v1/status", false),
		simpleQueryCmd("metrics", "Per-source performance metrics", "/api/v1/metrics", false),
		simpleQueryCmd("endpoints", "Endpoint pool status", "/api/v1/endpoints", false),
		eventsCmd(),
		blockCmd(),
		simpleQueryCmd("blocks", "Recent blocks", "/api/v1/blocks", true),
		txCmd(),
		simpleQueryCmd("txs", "Recent transactions", "/api/v1/txs", true),
		simpleQueryCmd("validators", "Active validator set", "/api/v1/validators", false),
		simpleQueryCmd("reporters", "Oracle reporters", "/api/v1/reporters", false),
		simpleQueryCmd("aggregates", "Aggregate oracle reports", "/api/v1/aggregates", true),
		simpleQueryCmd("deposits", "Bridge deposits", "/api/v1/bridge/deposits", true),
		simpleQueryCmd("proposals", "Governance proposals", "/api/v1/proposals", true),
	)
	return cmd
}

func simpleQueryCmd(use, short, path string, paged bool) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.OutOrStdout(), &flags, path, flags.values())
		},
	}
	flags.register(cmd, paged)
	return cmd
}

func blockCmd() *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "block [height|latest]",
		Short: "Query a block by height, or the latest block",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/blocks/latest"
			if len(args) == 1 && args[0] != "latest" {
				height, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || height < 1 {
					return fmt.Errorf("height must be a positive integer")
				}
				path = "/api/v1/blocks/" + strconv.FormatInt(height, 10)
			}
			return runQuery(cmd.OutOrStdout(), &flags, path, flags.values())
		},
	}
	flags.register(cmd, false)
	return cmd
}

func txCmd() *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "tx [hash]",
		Short: "Query a transaction by hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.OutOrStdout(), &flags, "/api/v1/txs/"+url.PathEscape(args[0]), flags.values())
		},
	}
	flags.register(cmd, false)
	return cmd
}

func eventsCmd() *cobra.Command {
	var (
		flags     queryFlags
		eventType string
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Recent monitoring events of a source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := flags.values()
			if eventType != "" {
				v.Set("type", eventType)
			}
			return runQuery(cmd.OutOrStdout(), &flags, "/api/v1/events", v)
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVar(&eventType, "type", "", "Event type (query|error|fallback|health_check|performance)")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func runQuery(out io.Writer, flags *queryFlags, path string, query url.Values) error {
	port := flags.port
	if port == 0 {
		port = queryServerPort()
	}

	target := fmt.Sprintf("http://localhost:%d%s", port, path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// /health reports unhealthy with 503 and a regular payload
	if resp.StatusCode != http.StatusOK && !(path == "/health" && resp.StatusCode == http.StatusServiceUnavailable) {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		if errResp.Code != "" {
			return fmt.Errorf("server error (%s): %s", errResp.Code, errResp.Error)
		}
		return fmt.Errorf("server error: %s", errResp.Error)
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return printOutput(out, data, flags.output)
}

// queryServerPort reads the port from the config, or the default when
// there is no config yet.
func queryServerPort() int {
	loadedCfg, err := config.Load(nodeHome)
	if err != nil {
		return constant.QueryServerPort
	}
	return loadedCfg.QueryServerPort
}

// printOutput prints the output in the specified format
func printOutput(out io.Writer, data interface{}, format string) error {
	switch format {
	case OutputFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(data)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
