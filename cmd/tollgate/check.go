package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/server/api"
	"mercator-hq/tollgate/pkg/tps"
)

var checkFlags struct {
	server       string
	point        string
	connectionID string
	keys         []string
	timeout      time.Duration
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Ask a running server for an admission decision",
	Long: `Send one admission check to a running tollgate server.

The command exits 0 when the request is admitted and 3 when it is
throttled.

Examples:
  tollgate check --point configPublish
  tollgate check --server http://10.0.0.1:9090 --point configPublish --key testKey:a1b`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFlags.server, "server", "s", "http://127.0.0.1:9090", "tollgate server URL")
	checkCmd.Flags().StringVarP(&checkFlags.point, "point", "p", "", "monitor point name")
	checkCmd.Flags().StringVar(&checkFlags.connectionID, "connection-id", "", "connection id (random when empty)")
	checkCmd.Flags().StringArrayVarP(&checkFlags.keys, "key", "k", nil, "monitor key as type:key (repeatable)")
	checkCmd.Flags().DurationVar(&checkFlags.timeout, "timeout", 5*time.Second, "request timeout")
	_ = checkCmd.MarkFlagRequired("point")
}

func runCheck(cmd *cobra.Command, args []string) error {
	keys, err := parseKeys(checkFlags.keys)
	if err != nil {
		return err
	}
	connID := checkFlags.connectionID
	if connID == "" {
		connID = uuid.NewString()
	}

	req := api.CheckRequest{Point: checkFlags.point, ConnectionID: connID}
	for _, k := range keys {
		req.Keys = append(req.Keys, api.KeyDoc{Type: k.Type(), Key: k.Key()})
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), checkFlags.timeout)
	defer cancel()
	return postCheck(ctx, cmd, strings.TrimRight(checkFlags.server, "/"), req)
}

func postCheck(ctx context.Context, cmd *cobra.Command, server string, req api.CheckRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/v1/tps/check", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return cli.NewCommandError("check", err)
	}
	defer resp.Body.Close()

	out := cmd.OutOrStdout()
	switch resp.StatusCode {
	case http.StatusOK:
		var cr api.CheckResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			return cli.NewCommandError("check", err)
		}
		fmt.Fprintf(out, "admitted: point=%s rule_version=%d\n", cr.Point, cr.RuleVersion)
		for _, c := range cr.Checks {
			fmt.Fprintf(out, "  %s %s count=%d/%d\n", displayPattern(c.Pattern), c.Key, c.Count, c.MaxCount)
		}
		return nil

	case http.StatusTooManyRequests:
		var er api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return cli.NewCommandError("check", err)
		}
		fmt.Fprintf(out, "throttled: point=%s pattern=%s limit=%d\n",
			er.Error.Point, displayPattern(er.Error.Pattern), er.Error.Limit)
		return fmt.Errorf("point %s: %w", er.Error.Point, tps.ErrThrottled)

	default:
		var er api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Message == "" {
			return cli.NewCommandError("check", fmt.Errorf("unexpected status %s", resp.Status))
		}
		return cli.NewCommandError("check", fmt.Errorf("%s: %s", er.Error.Type, er.Error.Message))
	}
}

func displayPattern(p string) string {
	if p == "" {
		return "<point>"
	}
	return p
}
