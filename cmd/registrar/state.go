package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func stateCmd() *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "print the registrar's per-category queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]int
			if err := newAPIClient(endpoint).getJSON("/api/registrar/state", &resp); err != nil {
				return err
			}
			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "api-endpoint", defaultAPIEndpoint(), "registrar daemon API base URL")
	return cmd
}
