// Package main implements the nesdeck command-line front end.
package main

import (
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"nesdeck/internal/app"
	"nesdeck/internal/cart"
	"nesdeck/internal/version"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "nesdeck",
		Short: "Control Deck: a cycle-accurate NES/Famicom emulator",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")

	root.AddCommand(newRunCmd(), newResetCmd(), newInfoCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		glog.Exit(err)
	}
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return app.GetDefaultConfigPath()
}

func newRunCmd() *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "run [rom]",
		Short: "Load a ROM and run it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewApplicationWithMode(configPath(), headless)
			if err != nil {
				return err
			}
			defer a.Cleanup()

			if len(args) == 1 {
				if err := a.LoadROM(args[0]); err != nil {
					return err
				}
			} else if headless {
				return fmt.Errorf("a ROM path is required in headless mode")
			}
			return a.Run()
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "run without a window, for automation/testing")
	return cmd
}

// newResetCmd power-cycles a ROM for a fixed number of frames headless and
// exits, a quick smoke test that the mapper and reset vector are sane
// without bringing up a window.
func newResetCmd() *cobra.Command {
	var frames int
	cmd := &cobra.Command{
		Use:   "reset <rom>",
		Short: "Power-cycle a ROM headlessly for a few frames and report status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewApplicationWithMode(configPath(), true)
			if err != nil {
				return err
			}
			defer a.Cleanup()

			if err := a.LoadROM(args[0]); err != nil {
				return err
			}
			a.Reset()

			deck := a.GetDeck()
			for i := 0; i < frames; i++ {
				if err := deck.ClockFrame(); err != nil {
					return err
				}
			}
			if deck.CPUCorrupted() {
				return fmt.Errorf("CPU entered an illegal/corrupted state within %d frames", frames)
			}
			fmt.Printf("ran %d frames cleanly\n", frames)
			return nil
		},
	}
	cmd.Flags().IntVar(&frames, "frames", 60, "number of frames to clock before reporting")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <rom>",
		Short: "Print a ROM's header information without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			c, err := cart.Load(args[0], data)
			if err != nil {
				return err
			}
			fmt.Printf("Name:      %s\n", c.Name)
			fmt.Printf("Mapper:    %d (submapper %d)\n", c.MapperID, c.Submapper)
			fmt.Printf("PRG-ROM:   %d KiB\n", len(c.PRGROM)/1024)
			if c.CHRIsRAM {
				fmt.Printf("CHR-RAM:   %d KiB\n", len(c.CHRROM)/1024)
			} else {
				fmt.Printf("CHR-ROM:   %d KiB\n", len(c.CHRROM)/1024)
			}
			fmt.Printf("PRG-RAM:   %d KiB\n", len(c.PRGRAM)/1024)
			fmt.Printf("Mirroring: %v\n", c.Mirroring)
			fmt.Printf("Battery:   %v\n", c.Battery)
			fmt.Printf("Region:    %v\n", c.Region)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			version.PrintBuildInfo()
			return nil
		},
	}
}
