// Command rawprint is the spooling bridge: it writes a file of encoded
// receipt bytes verbatim to a raw printer and answers Success or Failed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cravings/printagent/internal/infrastructure/rawprinter"
	"github.com/spf13/viper"
)

const envPrefix = "PRINTAGENT_RAWPRINT"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 only when the printer took the bytes
func run(args []string, stdout, stderr io.Writer) int {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetDefault("type", rawprinter.TypeNone)
	v.SetDefault("timeout", "10s")

	fs := flag.NewFlagSet("rawprint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	printerType := fs.String("type", v.GetString("type"), "Printer type (usb, network, none)")
	device := fs.String("device", v.GetString("device"), "Device file for usb printers, e.g. /dev/usb/lp0")
	address := fs.String("address", v.GetString("address"), "host:port for network printers")
	timeout := fs.Duration("timeout", v.GetDuration("timeout"), "Connect and write timeout")
	fs.Usage = func() {
		fmt.Fprintln(stdout, "Usage: rawprint [flags] <path_to_file>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(stdout, "File not found: "+path)
		} else {
			fmt.Fprintf(stdout, "Failed to read %s: %v\n", path, err)
		}
		return 1
	}

	printer, err := rawprinter.New(rawprinter.Config{
		Type:    *printerType,
		Device:  *device,
		Address: *address,
		Timeout: *timeout,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stdout, "Failed")
		return 1
	}

	fmt.Fprintf(stdout, "Printing %s to %s\n", path, printer.Describe())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+5*time.Second)
	defer cancel()

	if err := printer.Print(ctx, data); err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stdout, "Failed")
		return 1
	}
	fmt.Fprintln(stdout, "Success")
	return 0
}
