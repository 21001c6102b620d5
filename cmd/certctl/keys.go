package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/certmgmt/backend/pkg/certclient"
)

func newKeysCmd() *cobra.Command {
	var (
		server        string
		token         string
		participantID string
	)

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Fetch approved public keys from a running API",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := certclient.NewClient(server, certclient.WithToken(token))
			out := cmd.OutOrStdout()

			if participantID != "" {
				key, err := client.GetPublicKey(cmd.Context(), participantID)
				if err != nil {
					return err
				}
				if key == "" {
					return fmt.Errorf("participant %s has no approved certificate", participantID)
				}
				fmt.Fprint(out, key)
				return nil
			}

			keys, err := client.ListPublicKeys(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PARTICIPANT\tKEY BYTES")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%d\n", k.ParticipantID, len(k.PublicKey))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:3200", "API base URL")
	cmd.Flags().StringVar(&token, "token", os.Getenv("CERTCTL_TOKEN"), "bearer token, defaults to $CERTCTL_TOKEN")
	cmd.Flags().StringVarP(&participantID, "participant", "p", "", "print only this participant's public key")

	return cmd
}
