package main

import (
	"fmt"
	"io"
	"os"

	units "github.com/docker/go-units"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bootenvtool/internal/blockdev"
	"bootenvtool/internal/imaging"
	"bootenvtool/internal/probe"
	"bootenvtool/internal/script"
)

// progressOutput returns w when it is a terminal, nil otherwise.
func progressOutput(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	if !ok {
		return nil
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return f
	}
	return nil
}

// target returns the device and byte range an image command works on: a
// partition when key is set, the configured environment otherwise.
func (a *app) target(key string) (string, imaging.Region, error) {
	if key != "" {
		p, ok := probe.Find(a.prober().Probe(), key)
		if !ok {
			return "", imaging.Region{}, errors.Errorf("no partition matches %q", key)
		}
		return p.Disk, imaging.Region{Offset: p.Offset(), Length: int64(p.Size())}, nil
	}

	env := a.cfg.Env
	if env.Path == "" || env.Count <= 0 {
		return "", imaging.Region{}, errors.New("no environment location configured, use --env-path and --env-count or the [env] section")
	}
	return env.Path, imaging.Region{
		Offset: int64(env.Start) * script.BlockSize,
		Length: int64(env.Count) * script.BlockSize,
	}, nil
}

func (a *app) algorithm(name string) (imaging.Algorithm, error) {
	if name == "" {
		name = a.cfg.Image.Compression
	}
	return imaging.ParseAlgorithm(name)
}

func printResult(w io.Writer, verb string, res imaging.Result) {
	fmt.Fprintf(w, "%s: %s (%d bytes)\n", verb, units.BytesSize(float64(res.Written)), res.Written)
}

func (a *app) newBackupCommand() *cobra.Command {
	var partition, compression string
	cmd := &cobra.Command{
		Use:   "backup OUTPUTFILE",
		Short: "Save the environment region or a partition to a compressed image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := a.algorithm(compression)
			if err != nil {
				return err
			}
			device, region, err := a.target(partition)
			if err != nil {
				return err
			}

			f, err := os.Open(device)
			if err != nil {
				return permissionDenied(err, device)
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			res, err := imaging.Backup(f, region, args[0], imaging.Options{
				Algorithm: alg,
				Progress:  progressOutput(out),
				Log:       logrus.WithField("component", "imaging"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Writing to Image: %s\n", res.Path)
			printResult(out, "Written", res)
			fmt.Fprintf(out, "Total actual time: %s Compression ratio: %s\n", res.Elapsed, res.Ratio())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&partition, "partition", "p", "", "Back up the partition matching PARTUUID or path instead of the environment")
	flags.StringVarP(&compression, "compression", "c", "", "Compression algorithm (none, gzip, zlib, bzip2, snappy, s2, zstd, zip)")
	return cmd
}

func (a *app) newRestoreCommand() *cobra.Command {
	var partition, compression string
	var force, unmount bool
	cmd := &cobra.Command{
		Use:   "restore IMAGEFILE",
		Short: "Write an image back to the environment region or a partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var alg imaging.Algorithm
			if compression != "" {
				var err error
				if alg, err = imaging.ParseAlgorithm(compression); err != nil {
					return err
				}
			}
			device, region, err := a.target(partition)
			if err != nil {
				return err
			}
			if partition != "" && !force {
				p, _ := probe.Find(a.prober().Probe(), partition)
				if mp, err := blockdev.FindMountPoint(p.Path); err == nil {
					if !unmount {
						return errors.Errorf("%s is mounted on %s, use --unmount or --force", p.Path, mp)
					}
					logrus.Infof("Unmounting %s from %s", p.Path, mp)
					if err := blockdev.Unmount(mp); err != nil {
						return permissionDenied(err, mp)
					}
				}
			}

			f, err := os.OpenFile(device, os.O_WRONLY, 0)
			if err != nil {
				return permissionDenied(err, device)
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			res, err := imaging.Restore(args[0], f, region, imaging.Options{
				Algorithm: alg,
				Progress:  progressOutput(out),
				Log:       logrus.WithField("component", "imaging"),
			})
			if err != nil {
				return err
			}
			if err := f.Sync(); err != nil {
				return errors.Wrapf(err, "syncing %s", device)
			}
			printResult(out, "Restored", res)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&partition, "partition", "p", "", "Restore into the partition matching PARTUUID or path instead of the environment")
	flags.StringVarP(&compression, "compression", "c", "", "Compression algorithm, detected from the file name by default")
	flags.BoolVarP(&force, "force", "f", false, "Overwrite a mounted partition")
	flags.BoolVarP(&unmount, "unmount", "u", false, "Unmount the partition before writing to it")
	return cmd
}
