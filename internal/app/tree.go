package app

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/portablefs/mtpkit/pkg/mtp"
)

func NewTreeCommand() *cobra.Command {
	var deviceSel string
	var showFiles bool
	cmd := &cobra.Command{
		Use:   "tree [path]",
		Short: "Walk a device subtree and print every folder",
		Args:  cobra.MaximumNArgs(1),
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

			var root *mtp.Object
			if len(args) > 0 {
				root, err = dev.Resolve(args[0])
				if err != nil {
					return err
				}
			}

			warn := color.New(color.FgYellow)
			return dev.Walk(cmd.Context(), root,
				func(path string, folders, files []*mtp.Object) error {
					color.Blue("%s/", path)
					if showFiles {
						for _, file := range files {
							fmt.Printf("  %-10s  %s\n", humanize.IBytes(uint64(file.Size)), file.Name)
						}
					}
					return nil
				},
				mtp.WithWalkErrors(func(path string, err error) {
					warn.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", path, err)
				}),
			)
		},
	}
	cmd.Flags().StringVarP(&deviceSel, "device", "d", "", "device id or name")
	cmd.Flags().BoolVarP(&showFiles, "files", "f", false, "list files under each folder")
	return cmd
}
