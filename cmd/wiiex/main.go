package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/bodgit/wii"
	"github.com/bodgit/wii/gcz"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var fs = afero.NewOsFs()

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

// openImage opens name as a Wii disc image, dispatching to the gcz package
// when its extension marks it as compressed and to wii.OpenReader
// otherwise.
func openImage(name string) (wii.ReadCloser, error) {
	if filepath.Ext(name) == gcz.Extension {
		return gcz.OpenReader(name)
	}
	return wii.OpenReader(name)
}

func extract(c *cli.Context, logger *zap.SugaredLogger) error {
	file := c.Args().First()

	common := c.Path("common-key")
	if common == "" {
		common = filepath.Join(filepath.Dir(file), wii.CommonKeyFile)
	}

	opts := wii.DefaultOptions()
	opts.JustAPartition = c.Bool("just-a-partition")
	opts.DumpPartitionData = c.Bool("dump-partition-data")
	opts.UncompressYaz0 = !c.Bool("no-uncompress-yaz0")
	opts.UnpackRARC = !c.Bool("no-unpack-rarc")
	opts.SkipInvalidPartitions = c.Bool("skip-invalid-partitions")
	if max := c.Uint64("max-size-to-auto-analyse"); max > 0 {
		opts.MaxSizeToAutoAnalyse = max
	}

	var commonKey []byte
	if !opts.JustAPartition {
		key, err := afero.ReadFile(fs, common)
		if err != nil {
			return fmt.Errorf("reading common key: %w", err)
		}
		commonKey = key
	}

	rc, err := openImage(file)
	if err != nil {
		return fmt.Errorf("opening %q: %w", file, err)
	}
	defer rc.Close()

	d, err := wii.NewDisc(rc, commonKey, opts, logger)
	if err != nil {
		return err
	}

	directory := c.Path("directory")
	if fi, err := fs.Stat(directory); err == nil && !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", directory)
	} else if err != nil {
		if err := fs.MkdirAll(directory, 0o777); err != nil {
			return err
		}
	}

	return d.Extract(directory)
}

func main() {
	app := cli.NewApp()

	app.Name = "wiiex"
	app.Usage = "Nintendo Wii optical disc image extraction and verification utility"
	app.Version = fmt.Sprintf("%s, commit %s, built at %s", version, commit, date)

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	var debug bool

	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable verbose debug logging",
			Destination: &debug,
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:        "extract",
			Usage:       "Verify and extract the contents of a Wii disc image",
			Description: "Reads a raw or " + gcz.Extension + "-compressed disc image, verifies every cluster's hash tree and extracts its filesystem",
			ArgsUsage:   "FILE",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
				}

				var logger *zap.Logger
				var err error
				if debug {
					logger, err = zap.NewDevelopment()
				} else {
					logger, err = zap.NewProduction()
				}
				if err != nil {
					return err
				}
				defer logger.Sync() //nolint:errcheck

				return extract(c, logger.Sugar())
			},
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:    "directory",
					Aliases: []string{"d"},
					Usage:   "extract to `DIRECTORY`",
					Value:   cwd,
				},
				&cli.PathFlag{
					Name:  "common-key",
					Usage: "read the platform common key from `FILE`",
				},
				&cli.BoolFlag{
					Name:  "just-a-partition",
					Usage: "treat FILE as an already-decrypted single partition image, not a whole disc",
				},
				&cli.BoolFlag{
					Name:  "dump-partition-data",
					Usage: "also dump the verified raw partition data alongside the extracted files",
				},
				&cli.BoolFlag{
					Name:  "no-uncompress-yaz0",
					Usage: "do not transparently decompress Yaz0-compressed files",
				},
				&cli.BoolFlag{
					Name:  "no-unpack-rarc",
					Usage: "do not log detection of RARC archives",
				},
				&cli.BoolFlag{
					Name:  "skip-invalid-partitions",
					Usage: "skip partitions that fail to open or extract instead of aborting",
				},
				&cli.Uint64Flag{
					Name:  "max-size-to-auto-analyse",
					Usage: "files larger than this many bytes are streamed to disk instead of buffered for magic sniffing",
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
