package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/app"
	"github.com/spec-kit/ticket-intake/internal/catalog"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

var (
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "intakectl",
	Short: "Ticket intake CLI",
	Long: `intakectl drives the ticket intake pipeline from the command line.
It reads the same environment (or .env file) as the API server: with
POSTGRES_DSN set it works against the shared database, otherwise it uses the
in-memory stores seeded from CORPUS_SEED_PATH and TECHNICIANS_SEED_PATH.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress to stderr")
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func registerCommands() {
	catalogCmd := &cobra.Command{Use: "catalog", Short: "Inspect the reference catalog"}
	catalogCmd.AddCommand(catalogListCmd(), catalogLookupCmd())

	corpusCmd := &cobra.Command{Use: "corpus", Short: "Manage historical tickets used for similarity search"}
	corpusCmd.AddCommand(corpusImportCmd())

	techCmd := &cobra.Command{Use: "technicians", Short: "Manage technicians"}
	techCmd.AddCommand(technicianImportCmd(), technicianListCmd())

	ticketsCmd := &cobra.Command{Use: "tickets", Short: "Read processed tickets"}
	ticketsCmd.AddCommand(ticketListCmd(), ticketGetCmd())

	rootCmd.AddCommand(submitCmd(), nextNumberCmd(), catalogCmd, corpusCmd, techCmd, ticketsCmd)
}

func submitCmd() *cobra.Command {
	var req domain.TicketRequest
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Run a ticket through the intake pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				record, err := a.Intake.ProcessNewTicket(ctx, req)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(record)
				}
				printRecord(record)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "ticket title")
	cmd.Flags().StringVar(&req.Description, "description", "", "ticket description")
	cmd.Flags().StringVar(&req.Requester.Name, "requester-name", "", "requester name")
	cmd.Flags().StringVar(&req.Requester.Email, "requester-email", "", "requester email")
	cmd.Flags().StringVar(&req.Requester.Phone, "requester-phone", "", "requester phone")
	cmd.Flags().StringVar(&req.InitialPriority, "priority", "", "priority requested by the submitter")
	cmd.Flags().StringVar(&req.DueDate, "due-date", "", "due date (free form)")
	return cmd
}

func nextNumberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next-number",
		Short: "Allocate the next ticket number for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				number, err := a.Allocator.Next(ctx)
				if err != nil {
					return err
				}
				fmt.Println(number)
				return nil
			})
		},
	}
}

func catalogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [field]",
		Short: "List catalog fields, or the options of one field",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				if jsonOutput {
					return printJSON(cat.Fields())
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Field", "Options"})
				for _, f := range cat.Fields() {
					tw.AppendRow(table.Row{f, len(cat.Options(f))})
				}
				tw.Render()
				return nil
			}
			field := strings.ToLower(args[0])
			if !cat.HasField(field) {
				return fmt.Errorf("unknown catalog field %q", args[0])
			}
			options := cat.Options(field)
			if jsonOutput {
				return printJSON(options)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"Value", "Label"})
			for _, opt := range options {
				tw.AppendRow(table.Row{opt.Code, opt.Label})
			}
			tw.Render()
			return nil
		},
	}
}

func catalogLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <field> <label>",
		Short: "Resolve a label to its catalog code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			fmt.Println(cat.FindValueByLabel(args[0], args[1]))
			return nil
		},
	}
}

func corpusImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Load historical tickets into the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tickets []domain.SimilarTicket
			if err := app.LoadJSONFile(args[0], &tickets); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Corpus.Upsert(ctx, tickets)
				if err != nil {
					return err
				}
				fmt.Printf("imported %d of %d tickets\n", n, len(tickets))
				return nil
			})
		},
	}
}

func technicianImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Create or update technicians",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var techs []domain.Technician
			if err := app.LoadJSONFile(args[0], &techs); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				for i := range techs {
					if err := a.Technicians.Upsert(ctx, &techs[i]); err != nil {
						return fmt.Errorf("technician %s: %w", techs[i].ID, err)
					}
				}
				fmt.Printf("imported %d technicians\n", len(techs))
				return nil
			})
		},
	}
}

func technicianListCmd() *cobra.Command {
	var activeOnly bool
	var skill string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List technicians",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var filter repository.TechnicianFilter
				if activeOnly {
					filter.Active = &activeOnly
				}
				if skill != "" {
					filter.Skill = &skill
				}
				techs, err := a.Technicians.List(ctx, filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(techs)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Skills", "Workload", "Active"})
				for _, t := range techs {
					tw.AppendRow(table.Row{t.ID, t.Name, strings.Join(t.Skills, ", "),
						fmt.Sprintf("%d/%d", t.CurrentWorkload, t.MaxWorkload), t.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active technicians")
	cmd.Flags().StringVar(&skill, "skill", "", "skill filter")
	return cmd
}

func ticketListCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processed tickets, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				records, err := a.Intake.ListTickets(ctx, limit, offset)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(records)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Number", "Title", "Issue type", "Priority", "Technician"})
				for _, r := range records {
					tw.AppendRow(table.Row{r.TicketNumber, r.Request.Title,
						r.Classification.Get(domain.FieldIssueType).Label,
						r.Classification.Get(domain.FieldPriority).Label,
						r.Assignment.TechnicianName})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func ticketGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <number>",
		Short: "Show one processed ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				record, err := a.Intake.GetTicket(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(record)
				}
				printRecord(record)
				return nil
			})
		},
	}
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := zap.NewNop()
	if verbose {
		cfg.Logger.Format = "console"
		cfg.Logger.Output = "stderr"
		if logger, err = observability.NewLogger(cfg.Logger); err != nil {
			return err
		}
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()
	return fn(ctx, a)
}

func loadCatalog() (*catalog.Catalog, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return catalog.Load(cfg.Catalog.Path)
}

func printRecord(r *domain.TicketRecord) {
	tw := newTable()
	tw.AppendRow(table.Row{"Ticket", r.TicketNumber})
	tw.AppendRow(table.Row{"Title", r.Request.Title})
	tw.AppendRow(table.Row{"Main issue", r.Metadata.MainIssue})
	tw.AppendRow(table.Row{"Affected system", r.Metadata.AffectedSystem})
	for _, f := range domain.ClassifiedFields {
		v := r.Classification.Get(f)
		tw.AppendRow(table.Row{string(f), fmt.Sprintf("%s (%s)", v.Label, v.Value)})
	}
	tw.AppendRow(table.Row{"Similar tickets", strings.Join(r.SimilarTickets, ", ")})
	tw.AppendRow(table.Row{"Assigned to", fmt.Sprintf("%s <%s> [%s]",
		r.Assignment.TechnicianName, r.Assignment.TechnicianEmail, r.Assignment.Status)})
	tw.AppendRow(table.Row{"Notified", r.Notified})
	tw.Render()
	fmt.Println()
	fmt.Println(r.ResolutionNote)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
