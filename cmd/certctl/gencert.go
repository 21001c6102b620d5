package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/certmgmt/backend/internal/pki"
)

func newGenCertCmd() *cobra.Command {
	var (
		participantID string
		outDir        string
		validity      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gencert",
		Short: "Issue a self-signed participant certificate for local testing",
		Example: `# Write dfsp-one.pem and dfsp-one.key to the current directory
certctl gencert --participant dfsp-one`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cert, err := pki.NewParticipantCertificate(participantID, validity)
			if err != nil {
				return err
			}

			certPath := filepath.Join(outDir, participantID+".pem")
			keyPath := filepath.Join(outDir, participantID+".key")
			if err := os.WriteFile(certPath, cert.CertPEM, 0o644); err != nil {
				return fmt.Errorf("failed to write certificate: %w", err)
			}
			if err := os.WriteFile(keyPath, cert.KeyPEM, 0o600); err != nil {
				return fmt.Errorf("failed to write private key: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "certificate: %s\nprivate key: %s\n", certPath, keyPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&participantID, "participant", "p", "", "participant id used as the certificate common name")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().DurationVar(&validity, "validity", pki.DefaultValidity, "certificate validity")
	_ = cmd.MarkFlagRequired("participant")

	return cmd
}
