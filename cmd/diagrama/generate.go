package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/naveenspark/diagrama/internal/browser"
	"github.com/naveenspark/diagrama/internal/diagram"
	"github.com/naveenspark/diagrama/pkg/domain"
)

// errSilent ends a command with a failing exit status but no message.
var errSilent = errors.New("silent failure")

type generateFlags struct {
	diagramType string
	url         string
	clipboard   bool
	export      string
	open        bool
}

type codeSource interface {
	FromFile(path string) (string, error)
	FromClipboard() (string, error)
	FromURL(ctx context.Context, rawURL string) (string, error)
}

type generator interface {
	Generate(ctx context.Context, req domain.DiagramRequest) (*domain.DiagramResult, error)
}

type diagramExporter interface {
	Export(ctx context.Context, res *domain.DiagramResult, format domain.ExportFormat) (string, error)
}

// generateRun is one invocation of `diagrama generate`.
type generateRun struct {
	sources  codeSource
	service  generator
	exporter diagramExporter
	open     func(string) error
	out      io.Writer
	errOut   io.Writer
	spinner  bool
}

type generateOptions struct {
	file      string
	url       string
	clipboard bool
	kind      domain.DiagramType
	format    domain.ExportFormat
	open      bool
}

func parseGenerateOptions(args []string, f generateFlags) (generateOptions, error) {
	var opts generateOptions
	if len(args) > 0 {
		opts.file = args[0]
	}
	opts.url = f.url
	opts.clipboard = f.clipboard
	opts.open = f.open

	sources := 0
	for _, set := range []bool{opts.file != "", opts.url != "", opts.clipboard} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return opts, errors.New("give exactly one of: a file, --url or --clipboard")
	}

	kind, err := domain.ParseDiagramType(f.diagramType)
	if err != nil {
		return opts, err
	}
	opts.kind = kind

	if f.export != "" {
		format, err := domain.ParseExportFormat(f.export)
		if err != nil {
			return opts, err
		}
		opts.format = format
	}
	return opts, nil
}

func (r *generateRun) readCode(ctx context.Context, opts generateOptions) (string, error) {
	switch {
	case opts.file != "":
		return r.sources.FromFile(opts.file)
	case opts.url != "":
		return r.sources.FromURL(ctx, opts.url)
	default:
		return r.sources.FromClipboard()
	}
}

func (r *generateRun) run(ctx context.Context, opts generateOptions) error {
	code, err := r.readCode(ctx, opts)
	if err != nil {
		return err
	}

	stop := r.startSpinner()
	res, err := r.service.Generate(ctx, domain.DiagramRequest{RawText: code, Type: opts.kind})
	stop()
	if err != nil {
		if errors.Is(err, diagram.ErrForbidden) {
			return errSilent
		}
		return errors.New(diagram.Notice(err))
	}

	fmt.Fprintf(r.out, "%s: %s\n", res.Type.Label(), res.URL)

	if opts.format != "" {
		path, err := r.exporter.Export(ctx, res, opts.format)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(r.out, "saved %s\n", path)
	}
	if opts.open && r.open != nil {
		if err := r.open(res.URL); err != nil {
			fmt.Fprintf(r.errOut, "could not open the browser: %v\n", err)
		}
	}
	return nil
}

// startSpinner shows an indeterminate progressbar until the returned func is
// called.
func (r *generateRun) startSpinner() func() {
	if !r.spinner {
		return func() {}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("generating diagram"),
		progressbar.OptionSetWriter(r.errOut),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				_ = bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
		_ = bar.Finish()
	}
}

func newGenerateCmd(g *globalFlags) *cobra.Command {
	f := generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate [file.txt]",
		Short: "Generate a diagram from a JSON description",
		Long: `Reads the JSON description from a .txt file, a GitHub URL or the
clipboard, sends it to the diagram service and prints the image URL.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseGenerateOptions(args, f)
			if err != nil {
				return err
			}
			e, err := g.setup()
			if err != nil {
				return err
			}
			defer e.closeLog() //nolint:errcheck

			if !e.holder.Authenticated() {
				return errors.New("not signed in; run `diagrama login`")
			}
			r := &generateRun{
				sources:  e.loader,
				service:  e.service,
				exporter: e.exporter,
				open:     browser.Open,
				out:      cmd.OutOrStdout(),
				errOut:   cmd.ErrOrStderr(),
				spinner:  true,
			}
			return r.run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&f.diagramType, "type", "t", string(domain.DiagramFlowchart), "diagram type: flowchart, sequence, class, er, aws, network")
	cmd.Flags().StringVar(&f.url, "url", "", "GitHub file URL to read the description from")
	cmd.Flags().BoolVar(&f.clipboard, "clipboard", false, "read the description from the clipboard")
	cmd.Flags().StringVarP(&f.export, "export", "e", "", "also save the diagram as svg or png")
	cmd.Flags().BoolVar(&f.open, "open", false, "open the diagram in the browser")
	return cmd
}
