package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vouchd/internal/domain"
	"vouchd/internal/infra/credential"
	"vouchd/internal/infra/didkey"
	"vouchd/internal/usecase"
)

func vcCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "vc", Short: "Work with verifiable credentials"}
	cmd.AddCommand(vcVerifyCmd())
	return cmd
}

type vcVerifyOutput struct {
	Valid  bool   `json:"valid"`
	Issuer string `json:"issuer,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error,omitempty"`
}

func vcVerifyCmd() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a credential's proof and expiry offline",
		Long: `Verify a credential's proof and expiry offline.

The issuer key is recovered from the did:key issuer id embedded in the
credential, so no network access or registry lookup is involved. Exits
non-zero when the credential does not verify.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(in)
			if err != nil {
				return err
			}
			var vc domain.VerifiableCredential
			if err := json.Unmarshal(raw, &vc); err != nil {
				return fmt.Errorf("parse credential: %w", err)
			}

			svc := usecase.NewCredentialService(didkey.NewService(), credential.NewService(), time.Now)
			result := svc.Verify(vc)
			out := vcVerifyOutput{Valid: result.Valid, Issuer: vc.Issuer.ID, Kind: vc.Kind()}
			if result.Err != nil {
				out.Error = result.Err.Error()
			}
			payload, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			if err := writeOutput("", payload); err != nil {
				return err
			}
			if !result.Valid {
				cmd.SilenceUsage = true
				return errors.New("credential did not verify")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "credential JSON file ('-' or empty reads stdin)")
	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
