package app

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List attached MTP devices and their storages",
		RunE: func(cmd *cobra.Command, args []string) error {
			access, err := open()
			if err != nil {
				return err
			}
			devices, err := access.Devices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("No MTP devices attached")
				return nil
			}
			for _, dev := range devices {
				color.New(color.Bold).Printf("%s\n", dev.Name)
				fmt.Printf("  ID: %s\n", dev.ID)
				if dev.Description != "" {
					fmt.Printf("  Description: %s\n", dev.Description)
				}
				if dev.Serial != "" {
					fmt.Printf("  Serial: %s\n", dev.Serial)
				}
				storages, err := dev.Storages()
				if err != nil {
					fmt.Printf("  Storages: unavailable (%v)\n", err)
					continue
				}
				for _, storage := range storages {
					if storage.Capacity >= 0 && storage.Free >= 0 {
						fmt.Printf("  %s: %s free of %s\n", storage.Root.Name,
							humanize.IBytes(uint64(storage.Free)),
							humanize.IBytes(uint64(storage.Capacity)))
					} else {
						fmt.Printf("  %s\n", storage.Root.Name)
					}
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func NewLsCommand() *cobra.Command {
	var deviceSel string
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder on a device",
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

			if len(args) == 0 {
				storages, err := dev.Storages()
				if err != nil {
					return err
				}
				for _, storage := range storages {
					color.Blue("%s/", storage.Root.Name)
				}
				return nil
			}

			obj, err := dev.Resolve(args[0])
			if err != nil {
				return err
			}
			folders, files, err := obj.Children()
			if err != nil {
				return err
			}
			for _, folder := range folders {
				color.Blue("%s/", folder.Name)
			}
			for _, file := range files {
				fmt.Printf("%-10s  %s\n", humanize.IBytes(uint64(file.Size)), file.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&deviceSel, "device", "d", "", "device id or name")
	return cmd
}

func NewMkdirCommand() *cobra.Command {
	var deviceSel string
	cmd := &cobra.Command{
		Use:   "mkdir [path]",
		Short: "Create a folder path on a device",
		Args:  cobra.ExactArgs(1),
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

			obj, err := dev.MakeDirs(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Created %s\n", obj.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&deviceSel, "device", "d", "", "device id or name")
	return cmd
}

func NewRmCommand() *cobra.Command {
	var deviceSel string
	cmd := &cobra.Command{
		Use:   "rm [path]",
		Short: "Delete a file or folder on a device",
		Args:  cobra.ExactArgs(1),
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
			if err := dev.Remove(obj); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", obj.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&deviceSel, "device", "d", "", "device id or name")
	return cmd
}
