package main

import (
	"encoding/base64"
	"encoding/json"

	"github.com/spf13/cobra"

	"vouchd/internal/infra/didkey"
)

type keygenOutput struct {
	DID       string `json:"did"`
	PublicKey string `json:"publicKey"`
	// Seed is the 32-byte Ed25519 private seed. Anyone holding it can sign
	// as this identity; treat the output accordingly.
	Seed string `json:"seed"`
}

func keygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a did:key Ed25519 identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := didkey.NewService().GenerateKeyPair()
			if err != nil {
				return err
			}
			payload, err := json.MarshalIndent(keygenOutput{
				DID:       kp.DID,
				PublicKey: base64.StdEncoding.EncodeToString(kp.PublicKey),
				Seed:      base64.StdEncoding.EncodeToString(kp.Seed()),
			}, "", "  ")
			if err != nil {
				return err
			}
			return writeOutput(out, payload)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the key pair to a file instead of stdout")
	return cmd
}
