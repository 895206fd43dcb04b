package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/backkem/ssession/pkg/crypto"
)

func keygenCmd() *cobra.Command {
	var alg, out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a long-term identity key",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := crypto.ParseSignatureAlgorithm(alg)
			if err != nil {
				return err
			}
			signer, err := crypto.GenerateSigner(a, nil)
			if err != nil {
				return err
			}
			defer signer.Zeroize()

			text, err := formatKey(signer)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			}
			if err := os.WriteFile(out, []byte(text), 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s key written to %s\n", a, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&alg, "alg", crypto.SignatureEd25519.String(), "signature algorithm (ecdsa-p256, ed25519, ml-dsa-65)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
