package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"synnergy-registrar/pkg/utils"
)

func opsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "ops", Short: "issue name operations against a running registrar"}
	cmd.AddCommand(preorderCmd())
	cmd.AddCommand(updateCmd())
	cmd.AddCommand(transferCmd())
	cmd.AddCommand(renewCmd())
	cmd.AddCommand(revokeCmd())
	return cmd
}

func endpointFlag(cmd *cobra.Command) *string {
	var endpoint string
	cmd.Flags().StringVar(&endpoint, "api-endpoint", defaultAPIEndpoint(), "registrar daemon API base URL")
	return &endpoint
}

// defaultAPIEndpoint lets REGISTRAR_API_ENDPOINT override the CLI's default
// target, so scripted callers don't have to repeat --api-endpoint on every
// invocation.
func defaultAPIEndpoint() string {
	return utils.EnvOrDefault("REGISTRAR_API_ENDPOINT", "http://127.0.0.1:6270")
}

func printTxHash(resp map[string]string) {
	fmt.Printf("tx_hash: %s\n", resp["tx_hash"])
}

func readFileIfSet(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

func preorderCmd() *cobra.Command {
	var fqu, zonefilePath, tokenFilePath, transferAddress string
	var costSats int64
	var minConfirmations int
	cmd := &cobra.Command{
		Use:   "preorder",
		Short: "preorder a name",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, _ := cmd.Flags().GetString("api-endpoint")
			zonefile, err := readFileIfSet(zonefilePath)
			if err != nil {
				return err
			}
			tokenFile, err := readFileIfSet(tokenFilePath)
			if err != nil {
				return err
			}
			var resp map[string]string
			if err := newAPIClient(endpoint).postJSON("/api/registrar/preorder", map[string]interface{}{
				"fqu": fqu, "cost_sats": costSats, "zonefile": zonefile,
				"token_file": tokenFile, "transfer_address": transferAddress,
				"min_confirmations": minConfirmations,
			}, &resp); err != nil {
				return err
			}
			printTxHash(resp)
			return nil
		},
	}
	endpointFlag(cmd)
	cmd.Flags().StringVar(&fqu, "fqu", "", "fully-qualified name")
	cmd.Flags().Int64Var(&costSats, "cost-sats", 0, "preorder burn amount in satoshis")
	cmd.Flags().StringVar(&zonefilePath, "zonefile", "", "path to zone file content to carry forward to registration")
	cmd.Flags().StringVar(&tokenFilePath, "token-file", "", "path to token file content to carry forward to registration")
	cmd.Flags().StringVar(&transferAddress, "transfer-address", "", "address to transfer the name to once registered")
	cmd.Flags().IntVar(&minConfirmations, "min-confirmations", 0, "override the configured minimum payment confirmations")
	cmd.MarkFlagRequired("fqu")
	return cmd
}

func updateCmd() *cobra.Command {
	var fqu, zonefilePath, tokenFilePath, zonefileHash, transferAddress string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "set a name's zone file",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, _ := cmd.Flags().GetString("api-endpoint")
			zonefile, err := readFileIfSet(zonefilePath)
			if err != nil {
				return err
			}
			tokenFile, err := readFileIfSet(tokenFilePath)
			if err != nil {
				return err
			}
			var resp map[string]string
			if err := newAPIClient(endpoint).postJSON("/api/registrar/update", map[string]interface{}{
				"fqu": fqu, "zonefile": zonefile, "token_file": tokenFile,
				"zonefile_hash": zonefileHash, "transfer_address": transferAddress,
			}, &resp); err != nil {
				return err
			}
			printTxHash(resp)
			if resp["warning"] != "" {
				fmt.Printf("warning: %s\n", resp["warning"])
			}
			return nil
		},
	}
	endpointFlag(cmd)
	cmd.Flags().StringVar(&fqu, "fqu", "", "fully-qualified name")
	cmd.Flags().StringVar(&zonefilePath, "zonefile", "", "path to zone file content")
	cmd.Flags().StringVar(&tokenFilePath, "token-file", "", "path to token file content")
	cmd.Flags().StringVar(&zonefileHash, "zonefile-hash", "", "sha256 hex hash of the zone file (derived from --zonefile if omitted)")
	cmd.Flags().StringVar(&transferAddress, "transfer-address", "", "address to transfer the name to once this update confirms")
	cmd.MarkFlagRequired("fqu")
	return cmd
}

func transferCmd() *cobra.Command {
	var fqu, newOwner string
	var keepZonefile bool
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "transfer a name to a new owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, _ := cmd.Flags().GetString("api-endpoint")
			var resp map[string]string
			if err := newAPIClient(endpoint).postJSON("/api/registrar/transfer", map[string]interface{}{
				"fqu": fqu, "new_owner_address": newOwner, "keep_zonefile": keepZonefile,
			}, &resp); err != nil {
				return err
			}
			printTxHash(resp)
			return nil
		},
	}
	endpointFlag(cmd)
	cmd.Flags().StringVar(&fqu, "fqu", "", "fully-qualified name")
	cmd.Flags().StringVar(&newOwner, "new-owner", "", "new owner address")
	cmd.Flags().BoolVar(&keepZonefile, "keep-zonefile", false, "sent to the API as keep_zonefile; the broadcast transfer does not depend on it")
	cmd.MarkFlagRequired("fqu")
	cmd.MarkFlagRequired("new-owner")
	return cmd
}

func renewCmd() *cobra.Command {
	var fqu string
	var feeSats int64
	cmd := &cobra.Command{
		Use:   "renew",
		Short: "renew a name's registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, _ := cmd.Flags().GetString("api-endpoint")
			var resp map[string]string
			if err := newAPIClient(endpoint).postJSON("/api/registrar/renew", map[string]interface{}{
				"fqu": fqu, "fee_sats": feeSats,
			}, &resp); err != nil {
				return err
			}
			printTxHash(resp)
			return nil
		},
	}
	endpointFlag(cmd)
	cmd.Flags().StringVar(&fqu, "fqu", "", "fully-qualified name")
	cmd.Flags().Int64Var(&feeSats, "fee-sats", 0, "renewal fee in satoshis")
	cmd.MarkFlagRequired("fqu")
	return cmd
}

func revokeCmd() *cobra.Command {
	var fqu string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "revoke a name",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, _ := cmd.Flags().GetString("api-endpoint")
			var resp map[string]string
			if err := newAPIClient(endpoint).postJSON("/api/registrar/revoke", map[string]interface{}{
				"fqu": fqu,
			}, &resp); err != nil {
				return err
			}
			printTxHash(resp)
			return nil
		},
	}
	endpointFlag(cmd)
	cmd.Flags().StringVar(&fqu, "fqu", "", "fully-qualified name")
	cmd.MarkFlagRequired("fqu")
	return cmd
}
