// Command ecoleta-register registers a collection point by driving a form
// session against a running ecoleta server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/ecoleta/internal/client"
	"github.com/erazemk/ecoleta/internal/form"
	"github.com/erazemk/ecoleta/internal/model"
)

const usage = `Usage: ecoleta-register [flags]

Flags:
  -s, -server <url>      ecoleta server URL (env ECOLETA_SERVER, default: http://localhost:3333)
  -name <name>           entity name
  -email <address>       contact e-mail
  -whatsapp <number>     contact WhatsApp number
  -uf <code>             region (state) code, e.g. SP
  -city <name>           locality (city) name
  -lat <degrees>         latitude of the point
  -lng <degrees>         longitude of the point
  -items <ids>           comma-separated accepted item IDs, e.g. 1,3
  -list                  print items, regions and the localities of -uf, then exit
  -timeout <duration>    overall timeout (default: 30s)
  -h, -help              show this help and exit
`

type options struct {
	server   string
	name     string
	email    string
	whatsapp string
	uf       string
	city     string
	lat      string
	lng      string
	items    string
	list     bool
	timeout  time.Duration
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("ecoleta-register", flag.ContinueOnError)

	server := os.Getenv("ECOLETA_SERVER")
	if server == "" {
		server = "http://localhost:3333"
	}

	o := &options{}
	fs.StringVar(&o.server, "server", server, "")
	fs.StringVar(&o.server, "s", server, "")
	fs.StringVar(&o.name, "name", "", "")
	fs.StringVar(&o.email, "email", "", "")
	fs.StringVar(&o.whatsapp, "whatsapp", "", "")
	fs.StringVar(&o.uf, "uf", "", "")
	fs.StringVar(&o.city, "city", "", "")
	fs.StringVar(&o.lat, "lat", "", "")
	fs.StringVar(&o.lng, "lng", "", "")
	fs.StringVar(&o.items, "items", "", "")
	fs.BoolVar(&o.list, "list", false, "")
	fs.DurationVar(&o.timeout, "timeout", 30*time.Second, "")

	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return o, nil
}

func run(args []string, out io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	c := client.New(o.server, nil)
	f := form.New(c, c, nil, form.Options{
		OnSubmitted: func(p *model.Point) {
			fmt.Fprintf(out, "Point registered: #%d %s (%s/%s), %d items\n", p.ID, p.Name, p.City, p.UF, len(p.Items))
		},
	})
	defer f.Close()

	f.Mount()
	f.Wait()

	state := f.Snapshot()
	if state.Items.Status == form.Failed {
		slog.Warn("item catalog unavailable", "error", state.Items.Err)
	}
	if state.Regions.Status == form.Failed {
		slog.Warn("region list unavailable", "error", state.Regions.Err)
	}

	if o.uf != "" {
		uf := strings.ToUpper(strings.TrimSpace(o.uf))
		if state.Regions.Status == form.Loaded && !slices.Contains(state.Regions.Value, uf) {
			return fmt.Errorf("unknown region %q", o.uf)
		}
		f.SelectRegion(uf)
		f.Wait()

		if s := f.Snapshot(); s.Localities.Status == form.Failed {
			slog.Warn("locality list unavailable", "uf", uf, "error", s.Localities.Err)
		}
	}

	if o.list {
		printLists(out, f.Snapshot())
		return nil
	}

	f.SetName(o.name)
	f.SetEmail(o.email)
	f.SetWhatsapp(o.whatsapp)

	if o.city != "" {
		s := f.Snapshot()
		if s.Localities.Status == form.Loaded && !slices.Contains(s.Localities.Value, o.city) {
			return fmt.Errorf("unknown city %q in %s", o.city, s.Region)
		}
		f.SelectLocality(o.city)
	}

	if o.lat != "" || o.lng != "" {
		lat, err := strconv.ParseFloat(o.lat, 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q", o.lat)
		}
		lng, err := strconv.ParseFloat(o.lng, 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q", o.lng)
		}
		f.ClickMap(lat, lng)
	}

	ids, err := parseIDs(o.items)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !slices.Contains(f.Snapshot().SelectedItems, id) {
			f.ToggleItem(id)
		}
	}

	if _, err := f.Submit(ctx); err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintln(out, "The server rejected the point:")
			for _, p := range ve.Problems {
				fmt.Fprintf(out, "  - %s\n", p)
			}
		}
		return fmt.Errorf("submitting point: %w", err)
	}
	return nil
}

func printLists(out io.Writer, s form.State) {
	fmt.Fprintln(out, "Items:")
	for _, it := range s.Items.Value {
		fmt.Fprintf(out, "  %d  %s\n", it.ID, it.Title)
	}

	fmt.Fprintf(out, "Regions: %s\n", strings.Join(s.Regions.Value, " "))

	if !model.IsUnset(s.Region) {
		fmt.Fprintf(out, "Localities in %s:\n", s.Region)
		for _, l := range s.Localities.Value {
			fmt.Fprintf(out, "  %s\n", l)
		}
	}
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid item id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
