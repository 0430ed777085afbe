package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"rulegraph/internal/generator"
	"rulegraph/internal/graph"
	"rulegraph/internal/resolver"
	"rulegraph/internal/server"

	"github.com/spf13/cobra"
)

var (
	graphFormat      string
	graphMaxDepth    int
	graphCollapse    bool
	graphNoParams    bool
	graphNoLabels    bool
	graphDetail      string
	graphDate        string
	graphStops       []string
	graphNoParamsFor []string
	graphIgnoreStops bool

	showMarkdown bool
	impactHops   int
)

func init() {
	f := graphCmd.Flags()
	f.StringVarP(&graphFormat, "format", "f", "json", "Output format: json, mermaid or markdown")
	f.IntVar(&graphMaxDepth, "max-depth", graph.DefaultMaxDepth, "Maximum traversal depth (1-20)")
	f.BoolVar(&graphCollapse, "collapse", false, "Collapse adds/subtracts lists into group nodes")
	f.BoolVar(&graphNoParams, "no-params", false, "Do not follow or attach parameters")
	f.BoolVar(&graphNoLabels, "no-labels", false, "Blank node labels")
	f.StringVar(&graphDetail, "detail", string(resolver.Summary), "Parameter detail level: Minimal, Summary or Full")
	f.StringVar(&graphDate, "date", "", "Parameter date YYYY-MM-DD (default latest)")
	f.StringSliceVar(&graphStops, "stop", nil, "Additional stop variables")
	f.StringSliceVar(&graphNoParamsFor, "no-params-for", nil, "Variables whose parameters are not shown")
	f.BoolVar(&graphIgnoreStops, "ignore-default-stops", false, "Do not apply the configured stop variables")

	showCmd.Flags().BoolVar(&showMarkdown, "markdown", false, "Render as markdown with a dependency diagram")
	showCmd.Flags().StringVar(&graphDetail, "detail", string(resolver.Summary), "Parameter detail level")
	showCmd.Flags().StringVar(&graphDate, "date", "", "Parameter date YYYY-MM-DD (default latest)")

	impactCmd.Flags().IntVar(&impactHops, "hops", 0, "Maximum reverse distance (0 for unbounded)")
}

func newService() *server.Service {
	cfg, logger, reg := setup()
	return server.NewService(reg, cfg, logger)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}

func detailOptions() (resolver.DetailLevel, time.Time) {
	level, err := resolver.ParseDetailLevel(graphDetail)
	if err != nil {
		log.Fatalf("Invalid --detail: %v", err)
	}
	var asOf time.Time
	if graphDate != "" {
		if asOf, err = resolver.ParseDate(graphDate); err != nil {
			log.Fatalf("Invalid --date: %v", err)
		}
	}
	return level, asOf
}

var graphCmd = &cobra.Command{
	Use:   "graph <variable>",
	Short: "Build the dependency graph of a variable",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := newService()

		req := graph.DefaultRequest()
		req.Country = country
		req.Variable = args[0]
		req.MaxDepth = graphMaxDepth
		req.ExpandAddsSubtracts = !graphCollapse
		req.ShowParameters = !graphNoParams
		req.ShowLabels = !graphNoLabels
		req.ParamDetailLevel = graphDetail
		req.ParamDate = graphDate
		req.StopVariables = graphStops
		req.NoParamsList = graphNoParamsFor
		req.IgnoreDefaultStops = graphIgnoreStops

		ds, g, err := svc.Graph(ctx, &req)
		if err != nil {
			log.Fatalf("Failed to build graph: %v", err)
		}

		switch strings.ToLower(graphFormat) {
		case "mermaid":
			fmt.Print(generator.NewMermaidGenerator().GenerateDependencyGraph(g))
		case "markdown":
			_, details, err := svc.Describe(ctx, ds.Country, req.Variable, req.DetailLevel(), req.AsOf())
			if err != nil {
				log.Fatalf("Failed to describe %s: %v", req.Variable, err)
			}
			fmt.Print(generator.NewMarkdownGenerator().GenerateVariableDoc(details, g))
		case "json":
			out := generator.NewFormatter(ds).Format(g, req)
			stats := g.Stats()
			out.Stats = &stats
			printJSON(out)
		default:
			log.Fatalf("Unknown format %q (json, mermaid, markdown)", graphFormat)
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every variable of a dataset",
	Run: func(cmd *cobra.Command, args []string) {
		ds, vars, err := newService().Variables(context.Background(), country)
		if err != nil {
			log.Fatalf("Failed to list variables: %v", err)
		}
		for _, v := range vars {
			fmt.Printf("%-50s %s\n", v.Name, v.Label)
		}
		fmt.Fprintf(os.Stderr, "%d variables in %s\n", len(vars), ds.Label)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search variables by name and label",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		query := strings.Join(args, " ")
		_, results, err := newService().Search(context.Background(), country, query)
		if err != nil {
			log.Fatalf("Search failed: %v", err)
		}
		if len(results) == 0 {
			fmt.Println("No matches.")
			return
		}
		for _, r := range results {
			marker := " "
			if r.HasParameters {
				marker = "*"
			}
			fmt.Printf("%s %-50s %s\n", marker, r.Name, r.Label)
		}
	},
}

var showCmd = &cobra.Command{
	Use:   "show <variable>",
	Short: "Show the details of a variable",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := newService()
		level, asOf := detailOptions()

		ds, details, err := svc.Describe(ctx, country, args[0], level, asOf)
		if err != nil {
			log.Fatalf("Failed to describe %s: %v", args[0], err)
		}
		if !showMarkdown {
			printJSON(details)
			return
		}

		req := graph.DefaultRequest()
		req.Country = ds.Country
		req.Variable = args[0]
		req.MaxDepth = 2
		req.ParamDate = graphDate
		_, g, err := svc.Graph(ctx, &req)
		if err != nil {
			log.Fatalf("Failed to build graph: %v", err)
		}
		fmt.Print(generator.NewMarkdownGenerator().GenerateVariableDoc(details, g))
	},
}

var impactCmd = &cobra.Command{
	Use:   "impact <variable>",
	Short: "List the variables affected by a change to a variable",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, report, err := newService().Impact(context.Background(), country, args[0], impactHops)
		if err != nil {
			log.Fatalf("Impact analysis failed: %v", err)
		}
		fmt.Printf("🔍 %s\n", report.Target)
		fmt.Printf("  -> %d variables directly affected\n", len(report.DirectlyAffected))
		for _, u := range report.DirectlyAffected {
			fmt.Printf("     %s (%s)\n", u.Variable, u.Role)
		}
		fmt.Printf("  -> %d variables indirectly affected\n", len(report.IndirectlyAffected))
		for _, name := range report.IndirectlyAffected {
			fmt.Printf("     %s (%d hops)\n", name, report.Depth[name])
		}
	},
}
