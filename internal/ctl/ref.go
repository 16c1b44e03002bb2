package ctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/fileref"
)

func newRefCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ref",
		Short: "Encode or decode file references",
		Long: `Encode a storage key into a file reference, or decode a file reference
back into its storage key. The shared secret is read from ` + common.FileRefSecretEnv + `
or prompted for.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "encode <storage-key>",
			Short: "Encrypt a storage key into a file reference",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				codec, err := codecFromEnv(cmd)
				if err != nil {
					return err
				}
				ref, err := codec.Encode(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ref)
				return nil
			},
		},
		&cobra.Command{
			Use:   "decode <file-ref>",
			Short: "Decrypt a file reference into its storage key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				codec, err := codecFromEnv(cmd)
				if err != nil {
					return err
				}
				key, err := codec.Decode(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			},
		},
	)
	return cmd
}

func codecFromEnv(cmd *cobra.Command) (*fileref.Codec, error) {
	secret, err := readSecret(cmd.ErrOrStderr(), common.FileRefSecretEnv, "File reference secret")
	if err != nil {
		return nil, err
	}
	return fileref.NewCodec(secret)
}
