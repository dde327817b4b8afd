package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/samirrijal/routefinder/internal/adapters/nominatim"
	"github.com/samirrijal/routefinder/internal/adapters/routingapi"
	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/usecases"
	"github.com/samirrijal/routefinder/internal/pkg/config"
	"github.com/samirrijal/routefinder/internal/pkg/httpclient"
	"github.com/samirrijal/routefinder/internal/pkg/logging"
)

var version = "dev"

type options struct {
	start   string
	end     string
	via     []string
	policy  string
	asJSON  bool
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "findroute --start PLACE --end PLACE [--via PLACE]...",
		Short: "Resolve two place names and print the best route between them",
		Long: `
findroute geocodes the start, end and any waypoints, asks the routing backend
for candidate routes and prints the one with the fewest points.

Output is JSON when stdout is not a terminal or --json is given.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.start, "start", "", "start place name (required)")
	f.StringVar(&opts.end, "end", "", "end place name (required)")
	f.StringArrayVar(&opts.via, "via", nil, "waypoint place name, repeatable, in order")
	f.StringVar(&opts.policy, "multiline", "", "MultiLineString policy: flatten or longest (default from config)")
	f.BoolVar(&opts.asJSON, "json", false, "always print the JSON view")
	f.DurationVar(&opts.timeout, "timeout", 45*time.Second, "overall deadline")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	cfg, err := config.Load("routefinder-cli")
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, "text")

	policyName := cfg.Routing.MultiLinePolicy
	if opts.policy != "" {
		policyName = opts.policy
	}
	policy, err := usecases.ParseMultiLinePolicy(policyName)
	if err != nil {
		return err
	}

	geocoder := nominatim.New(cfg.Geocoder.BaseURL,
		httpclient.New(cfg.Geocoder.UserAgent, time.Duration(cfg.Geocoder.TimeoutSeconds)*time.Second))
	router := routingapi.New(cfg.Routing.BaseURL,
		httpclient.New(cfg.Geocoder.UserAgent, time.Duration(cfg.Routing.TimeoutSeconds)*time.Second))

	session := usecases.NewRouteSession("cli", usecases.SessionDeps{
		Resolver:   usecases.NewPlaceResolver(geocoder, nil, usecases.WithPreferredKind(cfg.Geocoder.PreferredKind)),
		Router:     router,
		Normalizer: usecases.NewGeometryNormalizer(policy),
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	req := usecases.FindRouteRequest{
		Start: domain.PlaceQuery(opts.start),
		End:   domain.PlaceQuery(opts.end),
	}
	for _, v := range opts.via {
		req.Waypoints = append(req.Waypoints, domain.PlaceQuery(v))
	}

	view, findErr := session.FindRoute(ctx, req)
	if errors.Is(findErr, domain.ErrEmptyQuery) {
		return findErr
	}

	if opts.asJSON || !isTerminal(stdout) {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return err
		}
	} else {
		printView(stdout, view)
	}

	if findErr != nil {
		fmt.Fprintln(stderr, view.ErrorMessage)
		return findErr
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func printView(w io.Writer, v domain.RouteView) {
	for _, p := range v.Places {
		fmt.Fprintf(w, "%-9s %-24s %s\n", p.Role, p.Query, p.Point)
	}
	for _, q := range v.DroppedWaypoints {
		fmt.Fprintf(w, "dropped   %s\n", q)
	}

	rs := v.RouteSet
	if rs == nil {
		return
	}
	fmt.Fprintf(w, "\n%d candidate(s)\n", len(rs.CandidatePolylines))
	for i, line := range rs.CandidatePolylines {
		marker := " "
		if i == rs.BestIndex {
			marker = "*"
		}
		fmt.Fprintf(w, " %s #%d  %5d points  %8.1f km  (feature %d)\n",
			marker, i, len(line), rs.LengthsMeters[i]/1000, rs.SourceFeatures[i])
	}
	if rs.DistanceMeters != nil {
		fmt.Fprintf(w, "\nbackend distance: %.1f km\n", *rs.DistanceMeters/1000)
	}
	if rs.TravelTimeSeconds != nil {
		fmt.Fprintf(w, "backend travel time: %s\n", (time.Duration(*rs.TravelTimeSeconds) * time.Second).String())
	}
}
