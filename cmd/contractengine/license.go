package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newLicenseCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "License key utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify KEY",
		Short: "Check a license key against the configured verifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, nil)
			if err != nil {
				return err
			}
			v, err := newVerifier(cfg)
			if err != nil {
				return err
			}
			res, err := v.Verify(cmd.Context(), args[0])
			if err != nil {
				return withCode(exitCodeLicense, err)
			}
			if !res.Valid {
				return withCode(exitCodeLicense, errors.New(res.Message))
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	})
	return cmd
}
