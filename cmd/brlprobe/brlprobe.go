// Command brlprobe inspects the display side of the world without running
// the daemon: it lists the attachment points a display could sit on,
// prints the supported model catalog, and optionally runs a full
// identification round against the hardware.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/braillekit/braillex/internal/braillex"
	"github.com/braillekit/braillex/internal/monitoring"
	"github.com/braillekit/braillex/internal/transport"
	"github.com/braillekit/braillex/internal/version"
)

var (
	identify    = flag.Bool("identify", false, "Probe the candidates and report the display that answers")
	port        = flag.String("port", "auto", "Port spec to probe with -identify")
	models      = flag.Bool("models", false, "Print the supported model catalog")
	debugMode   = flag.Bool("debug", false, "Log protocol-level diagnostics")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("brlprobe %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	monitoring.SetDebug(*debugMode)

	switch {
	case *models:
		printModels(os.Stdout)
	case *identify:
		if err := runIdentify(*port); err != nil {
			log.Fatalf("identification failed: %v", err)
		}
	default:
		printCandidates(os.Stdout, transport.ListCandidates())
	}
}

func printCandidates(w io.Writer, candidates []transport.Candidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, "no candidate ports found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tPATH\tVID\tPID\tPRODUCT")
	for _, c := range candidates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Kind, c.Path, c.VID, c.PID, c.Product)
	}
	tw.Flush()
}

func printModels(w io.Writer) {
	catalog := braillex.Models()
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].Name < catalog[j].Name })

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tID\tCELLS\tVERTICAL\tPROTOCOL")
	for _, m := range catalog {
		fmt.Fprintf(tw, "%s\t%02X%02X\t%d\t%d\t%s\n",
			m.Name, m.ID[0], m.ID[1], m.Cells, m.VerticalCells, m.Protocol)
	}
	tw.Flush()
}

func runIdentify(spec string) error {
	log.Printf("probing %s...", spec)
	d, err := braillex.New(spec)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Terminate(); err != nil {
			log.Printf("terminate: %v", err)
		}
	}()

	m, _ := d.Model()
	fmt.Printf("found %s on %s\n", m, d.PortName())
	return nil
}
