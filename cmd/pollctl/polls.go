package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	pollhttp "ballotbox/contexts/governance/poll-registry/transport/http"

	"github.com/spf13/cobra"
)

func init() {
	createCmd.Flags().StringVar(&createTitle, "title", "", "poll title")
	rootCmd.AddCommand(createCmd, voteCmd, resultCmd, closeCmd, showCmd, votedCmd)
}

var createTitle string

var createCmd = &cobra.Command{
	Use:   "create <poll-id> <option>...",
	Short: "Create a poll owned by the caller",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := authenticatedClient()
		if err != nil {
			return err
		}
		var resp pollhttp.PollResponse
		err = client.do(cmd.Context(), http.MethodPost, "/v1/polls", pollhttp.CreatePollRequest{
			PollID:  args[0],
			Title:   createTitle,
			Options: append([]string{}, args[1:]...),
		}, &resp)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var voteCmd = &cobra.Command{
	Use:   "vote <poll-id> <choice>",
	Short: "Cast the caller's vote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := authenticatedClient()
		if err != nil {
			return err
		}
		var resp pollhttp.CastVoteResponse
		err = client.do(cmd.Context(), http.MethodPost, pollPath(args[0], "votes"), pollhttp.CastVoteRequest{
			Choice: args[1],
		}, &resp)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <poll-id>",
	Short: "Close a poll the caller created",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := authenticatedClient()
		if err != nil {
			return err
		}
		var resp pollhttp.PollResponse
		if err := client.do(cmd.Context(), http.MethodPost, pollPath(args[0], "close"), pollhttp.ClosePollRequest{}, &resp); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var resultCmd = &cobra.Command{
	Use:   "result <poll-id>",
	Short: "Print the current tally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var resp pollhttp.ResultResponse
		if err := client.do(cmd.Context(), http.MethodGet, pollPath(args[0], "results"), nil, &resp); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <poll-id>",
	Short: "Print a poll",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var resp pollhttp.PollResponse
		if err := client.do(cmd.Context(), http.MethodGet, pollPath(args[0]), nil, &resp); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var votedCmd = &cobra.Command{
	Use:   "voted <poll-id> <voter>",
	Short: "Report whether an identity has voted",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var resp pollhttp.VoterStatusResponse
		if err := client.do(cmd.Context(), http.MethodGet, pollPath(args[0], "voters", url.PathEscape(args[1])), nil, &resp); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

func authenticatedClient() (*apiClient, error) {
	client, err := newAPIClient()
	if err != nil {
		return nil, err
	}
	if !client.signed() {
		return nil, errors.New("--key or --as is required")
	}
	return client, nil
}

func printJSON(w io.Writer, value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}
