package app

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/portablefs/mtpkit/pkg/mtp"
)

func NewPullCommand() *cobra.Command {
	var deviceSel string
	var verify bool
	cmd := &cobra.Command{
		Use:   "pull [device-path] [local-path]",
		Short: "Copy a file from a device to the local filesystem",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			access, err := open()
			if err != nil {
				return err
			}
			dev, err := pickDevice(access, deviceSel)
			if err != nil {
				return err
			}
			defer dev.Close()

			obj, err := dev.Resolve(args[0])
			if err != nil {
				return err
			}
			local := obj.Name
			if len(args) == 2 {
				local = args[1]
				if info, err := os.Stat(local); err == nil && info.IsDir() {
					local = filepath.Join(local, obj.Name)
				}
			}
			dst, err := os.Create(local)
			if err != nil {
				return err
			}
			defer dst.Close()

			opts := []mtp.TransferOption{
				mtp.WithProgress(func(total int64) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%s", humanize.IBytes(uint64(total)))
				}),
			}
			var sum []byte
			if verify {
				opts = append(opts, mtp.WithDigest(&sum))
			}
			n, err := dev.Download(cmd.Context(), obj, dst, opts...)
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Printf("Pulled %s (%s) to %s\n", obj.Path, humanize.IBytes(uint64(n)), local)
			if verify {
				fmt.Printf("BLAKE2b-256: %s\n", hex.EncodeToString(sum))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&deviceSel, "device", "d", "", "device id or name")
	cmd.Flags().BoolVar(&verify, "verify", false, "print a BLAKE2b-256 digest of the transferred bytes")
	return cmd
}

func NewPushCommand() *cobra.Command {
	var deviceSel string
	cmd := &cobra.Command{
		Use:   "push [local-path] [device-folder]",
		Short: "Copy a local file into a folder on a device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			access, err := open()
			if err != nil {
				return err
			}
			dev, err := pickDevice(access, deviceSel)
			if err != nil {
				return err
			}
			defer dev.Close()

			src, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()
			info, err := src.Stat()
			if err != nil {
				return err
			}
			if info.IsDir() {
				return errors.Errorf("%s is a directory", args[0])
			}

			folder, err := dev.MakeDirs(args[1])
			if err != nil {
				return err
			}
			obj, err := dev.Upload(cmd.Context(), folder, filepath.Base(args[0]), src, info.Size(),
				mtp.WithProgress(func(total int64) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%s", humanize.IBytes(uint64(total)))
				}),
			)
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Printf("Pushed %s to %s\n", args[0], obj.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&deviceSel, "device", "d", "", "device id or name")
	return cmd
}
