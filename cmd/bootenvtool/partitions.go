package main

import (
	"fmt"
	"io"
	"os"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bootenvtool/internal/blockdev"
	"bootenvtool/internal/probe"
)

func (a *app) prober() *probe.Prober {
	return &probe.Prober{
		SysBlockDir: a.cfg.Probe.SysBlockDir,
		DevDir:      a.cfg.Probe.DevDir,
		Exclude:     a.cfg.Probe.Exclude,
		Log:         logrus.WithField("component", "probe"),
	}
}

func (a *app) newPartitionsCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:     "partitions",
		Aliases: []string{"part", "p"},
		Short:   "List partitions found on all block devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parts := a.prober().Probe()
			if verbose {
				return listDetailed(cmd.OutOrStdout(), parts)
			}
			for _, p := range parts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s PARTUUID=%s\n", p.Path, p.ID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show sizes, filesystems, mount points and logical partitions")
	return cmd
}

// listDetailed prints one block per disk with a row per partition.
func listDetailed(w io.Writer, parts []probe.Partition) error {
	var disk string
	var f *os.File
	defer func() {
		if f != nil {
			f.Close()
		}
	}()

	for i := 0; i < len(parts); i++ {
		p := parts[i]
		if p.Disk != disk {
			if f != nil {
				f.Close()
				f = nil
			}
			disk = p.Disk
			opened, err := os.Open(disk)
			if err != nil {
				logrus.WithError(err).Warnf("Could not open %s", disk)
			} else {
				f = opened
			}
			printDiskHeader(w, disk, f)
		}

		fs := blockdev.Unknown
		if f != nil {
			fs = blockdev.DetectFilesystem(f, p.Offset())
		}
		mount := "-"
		if mp, err := blockdev.FindMountPoint(p.Path); err == nil {
			mount = mp
		}
		fmt.Fprintf(w, "  %-20s %-4s %-36s %12d %10s %-8s %-10s %s\n",
			p.Path, p.Scheme, p.ID, p.StartLBA, units.BytesSize(float64(p.Size())), fs, mount, p.Name)

		if f != nil && p.Index <= 4 && probe.IsExtended(p.Type) {
			logical, err := probe.ParseExtended(f, p)
			if err != nil {
				logrus.WithError(err).Warnf("Reading logical partitions of %s", p.Path)
			}
			// Logical partitions are listed right after their container.
			rest := append(append([]probe.Partition(nil), logical...), parts[i+1:]...)
			parts = append(parts[:i+1], rest...)
		}
	}
	return nil
}

func printDiskHeader(w io.Writer, disk string, f *os.File) {
	if f == nil {
		fmt.Fprintf(w, "%s\n", disk)
		return
	}
	size, err := blockdev.Size(f)
	if err != nil {
		fmt.Fprintf(w, "%s: sector size %d\n", disk, blockdev.SectorSize(f))
		return
	}
	fmt.Fprintf(w, "%s: %s, sector size %d\n", disk, units.BytesSize(float64(size)), blockdev.SectorSize(f))
}

func (a *app) newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve KEY",
		Short: "Print the device node of a PARTUUID or partition path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := probe.Find(a.prober().Probe(), args[0])
			if !ok {
				return errors.Errorf("no partition matches %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Path)
			return nil
		},
	}
}
