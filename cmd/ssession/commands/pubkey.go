package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

func pubkeyCmd() *cobra.Command {
	var keyFile, identity string
	cmd := &cobra.Command{
		Use:   "pubkey",
		Short: "Print the peers-file line for a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity == "" {
				return fmt.Errorf("identity required (--identity)")
			}
			signer, err := readKeyFile(keyFile)
			if err != nil {
				return err
			}
			defer signer.Zeroize()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", identity, hex.EncodeToString(signer.PublicKey().Marshal()))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "key file written by keygen")
	cmd.Flags().StringVar(&identity, "identity", "", "identity to publish the key under")
	return cmd
}
