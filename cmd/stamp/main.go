// Command stamp fills a PDF form template from a job file and writes the
// flattened result.
//
//	stamp --job job.json --assets ./images --output out.pdf template.pdf
//	stamp --list-fields template.pdf
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"go-pdfstamper/internal/job"
	"go-pdfstamper/internal/stamper"
)

type options struct {
	template   string
	jobFile    string
	output     string
	assets     string
	font       string
	password   string
	listFields bool
}

func parseArgs(args []string) (*options, error) {
	fs := pflag.NewFlagSet("stamp", pflag.ContinueOnError)
	fs.StringP("job", "j", "", "Job file (JSON)")
	fs.StringP("output", "o", "stamped.pdf", "Output file")
	fs.StringP("assets", "a", ".", "Directory that image assets are resolved against")
	fs.String("font", "", "Standard font for all fields, overrides the job font")
	fs.String("password", "", "Template password")
	fs.Bool("list-fields", false, "Print the template fields as JSON and exit")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stamp [flags] template.pdf\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("STAMPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected exactly one template, got %d", fs.NArg())
	}
	opts := &options{
		template:   fs.Arg(0),
		jobFile:    v.GetString("job"),
		output:     v.GetString("output"),
		assets:     v.GetString("assets"),
		font:       v.GetString("font"),
		password:   v.GetString("password"),
		listFields: v.GetBool("list-fields"),
	}
	if !opts.listFields && opts.jobFile == "" {
		return nil, fmt.Errorf("--job is required unless --list-fields is set")
	}
	return opts, nil
}

func run(opts *options) error {
	var sopts []stamper.Option
	if opts.password != "" {
		sopts = append(sopts, stamper.WithPassword(opts.password))
	}
	s, err := stamper.OpenFile(opts.template, sopts...)
	if err != nil {
		return err
	}

	if opts.listFields {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s.Fields())
	}

	j, err := job.Load(opts.jobFile)
	if err != nil {
		return err
	}
	if opts.font != "" {
		j.Font = opts.font
	}
	if err := job.Apply(s, j, job.Dir(opts.assets)); err != nil {
		return err
	}
	if err := s.SaveAs(opts.output); err != nil {
		return err
	}
	log.Printf("Stamped %s -> %s (%d operations)", opts.template, opts.output, len(j.Operations))
	return nil
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("stamp: ")

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}
	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}
