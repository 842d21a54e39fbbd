// Command rulegen compiles a rule document from a template and a set of
// data files without running the API server.
//
//	rulegen -template rule.yaml -out rule.json data.xlsx reference.xlsx
//	rulegen -example duplicates
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/liamcoop/uecnrules/catalog"
	"github.com/liamcoop/uecnrules/conditions"
	"github.com/liamcoop/uecnrules/ingest"
	"github.com/liamcoop/uecnrules/internal/logger"
	"github.com/liamcoop/uecnrules/rules"
)

type options struct {
	template     string
	example      string
	out          string
	converter    string
	check        bool
	listExamples bool
	files        []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("rulegen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.template, "template", "", "Template file (YAML or JSON)")
	fs.StringVar(&o.example, "example", "", "Start from a gallery example instead of a template")
	fs.StringVar(&o.out, "out", "", "Output file (default: stdout)")
	fs.StringVar(&o.converter, "converter", os.Getenv("CONVERTER_URL"), "Database conversion service URL for .mdb/.accdb files")
	fs.BoolVar(&o.check, "check", false, "Fail when the conditions do not check against the loaded files")
	fs.BoolVar(&o.listExamples, "list-examples", false, "List gallery examples and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.files = fs.Args()

	if o.listExamples {
		return o, nil
	}
	if (o.template == "") == (o.example == "") {
		return o, errors.New("exactly one of -template or -example is required")
	}
	return o, nil
}

// loadForm builds the form from the template file or the gallery
func loadForm(o options) (rules.FormState, error) {
	if o.example != "" {
		ex, err := rules.LookupExample(o.example)
		if err != nil {
			return rules.FormState{}, fmt.Errorf("%w: %s", err, o.example)
		}
		return rules.ApplyTemplate(ex.Template), nil
	}

	data, err := os.ReadFile(o.template)
	if err != nil {
		return rules.FormState{}, fmt.Errorf("failed to read template: %w", err)
	}
	t, err := rules.ParseTemplate(data)
	if err != nil {
		return rules.FormState{}, err
	}
	return rules.ApplyTemplate(t), nil
}

// loadFiles parses the data files in argument order so aliases are stable
func loadFiles(ctx context.Context, parser *ingest.Parser, paths []string) (*catalog.Set, error) {
	set := catalog.NewSet()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		parsed, err := parser.Parse(ctx, filepath.Base(path), f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		added := set.Add(parsed)
		logger.Debug("file loaded", "file", path, "alias", added.Alias, "fields", added.TotalFields())
	}
	return set, nil
}

func listExamples(w io.Writer) error {
	examples, err := rules.Examples()
	if err != nil {
		return err
	}
	for _, ex := range examples {
		fmt.Fprintf(w, "%-16s %s\n", ex.ID, ex.Title)
	}
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.listExamples {
		return listExamples(stdout)
	}

	form, err := loadForm(o)
	if err != nil {
		return err
	}

	var converter ingest.Converter
	if o.converter != "" {
		converter = ingest.NewConverterClient(o.converter, 60*time.Second)
	}
	set, err := loadFiles(ctx, ingest.NewParser(converter), o.files)
	if err != nil {
		return err
	}

	if o.check {
		checker, err := conditions.NewChecker()
		if err != nil {
			return err
		}
		report := checker.Check(form, set.Catalog())
		for _, issue := range report.Issues {
			fmt.Fprintf(stderr, "condition %d (%s): %s\n", issue.Index+1, issue.Kind, issue.Message)
		}
		if !report.Valid {
			return errors.New("conditions did not check")
		}
	}

	doc := rules.NewCompiler().Compile(form, set.Files())
	data, err := rules.Marshal(doc)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if o.out == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(o.out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", o.out, err)
	}
	logger.Info("rule written", "file", o.out, "rule_id", doc.RuleID, "rule_name", doc.RuleName)
	return nil
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Fatal("rulegen failed", "error", err)
	}
}
