package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"synnergy-registrar/internal/keys"
	"synnergy-registrar/internal/keystore"
	"synnergy-registrar/pkg/utils"
)

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "wallet", Short: "manage the registrar's signing wallet"}
	cmd.AddCommand(walletSetCmd())
	cmd.AddCommand(walletUnlockCmd())
	return cmd
}

// walletSetCmd writes an encrypted keystore file from singlesig privkeys
// and addresses given on the command line; it does not itself unlock a
// running engine (spec.md §4.1: the wallet cache is process-local and never
// persisted, so "set" only prepares the on-disk keystore for later unlock).
func walletSetCmd() *cobra.Command {
	var (
		out                                                      string
		password                                                 string
		paymentAddr, paymentPriv, ownerAddr, ownerPriv, dataAddr, dataPriv string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "encrypt and save payment/owner/data keys to a keystore file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("password required: pass --password or set REGISTRAR_WALLET_PASSWORD")
			}
			wk := keystore.WalletKeys{
				PaymentAddress: paymentAddr,
				PaymentKey:     keys.KeyInfo{Singlesig: &keys.SinglesigKey{PrivateKeyHex: paymentPriv}},
				OwnerAddress:   ownerAddr,
				OwnerKey:       keys.KeyInfo{Singlesig: &keys.SinglesigKey{PrivateKeyHex: ownerPriv}},
				DataAddress:    dataAddr,
				DataKey:        keys.KeyInfo{Singlesig: &keys.SinglesigKey{PrivateKeyHex: dataPriv}},
			}
			if err := keystore.Save(out, wk, password); err != nil {
				return err
			}
			fmt.Printf("wrote keystore to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "registrar.keystore", "keystore output path")
	cmd.Flags().StringVar(&password, "password", utils.EnvOrDefault("REGISTRAR_WALLET_PASSWORD", ""), "keystore encryption password (or set REGISTRAR_WALLET_PASSWORD)")
	cmd.Flags().StringVar(&paymentAddr, "payment-address", "", "payment address")
	cmd.Flags().StringVar(&paymentPriv, "payment-privkey", "", "payment private key (hex)")
	cmd.Flags().StringVar(&ownerAddr, "owner-address", "", "owner address")
	cmd.Flags().StringVar(&ownerPriv, "owner-privkey", "", "owner private key (hex)")
	cmd.Flags().StringVar(&dataAddr, "data-address", "", "data address")
	cmd.Flags().StringVar(&dataPriv, "data-privkey", "", "data private key (hex)")
	return cmd
}

// walletUnlockCmd loads a keystore and unlocks the running engine's wallet
// cache with it (spec.md §4.2 set_wallet), via the daemon's HTTP API.
func walletUnlockCmd() *cobra.Command {
	var (
		path     string
		password string
		endpoint string
	)
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "decrypt a keystore and unlock the running engine's wallet cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("password required: pass --password or set REGISTRAR_WALLET_PASSWORD")
			}
			wk, err := keystore.Load(path, password)
			if err != nil {
				return err
			}
			req := map[string]interface{}{
				"payment_address": wk.PaymentAddress,
				"payment_key":     wk.PaymentKey,
				"owner_address":   wk.OwnerAddress,
				"owner_key":       wk.OwnerKey,
				"data_address":    wk.DataAddress,
				"data_key":        wk.DataKey,
			}
			if err := newAPIClient(endpoint).postJSON("/api/registrar/wallet", req, nil); err != nil {
				return err
			}
			fmt.Println("wallet unlocked")
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "keystore", "registrar.keystore", "keystore file path")
	cmd.Flags().StringVar(&password, "password", utils.EnvOrDefault("REGISTRAR_WALLET_PASSWORD", ""), "keystore encryption password (or set REGISTRAR_WALLET_PASSWORD)")
	cmd.Flags().StringVar(&endpoint, "api-endpoint", defaultAPIEndpoint(), "registrar daemon API base URL")
	return cmd
}
