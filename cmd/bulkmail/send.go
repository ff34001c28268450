package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dazzlo/bulkmail/pkg/dispatch"
	"github.com/dazzlo/bulkmail/pkg/dnsverify"
	"github.com/dazzlo/bulkmail/pkg/logger"
	"github.com/dazzlo/bulkmail/pkg/recipients"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

var errAborted = errors.New("aborted")

type sendFlags struct {
	csv         string
	template    string
	creds       string
	attach      string
	logo        string
	senderName  string
	senderTitle string
	reuse       bool
	delay       time.Duration
	delaySet    bool
	yes         bool
	json        bool
}

func (c *cli) send(ctx context.Context, args []string) int {
	var f sendFlags
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.StringVar(&f.csv, "csv", "", "recipients file, CSV or XLSX (required)")
	fs.StringVar(&f.template, "template", string(templates.Interview), "template kind")
	fs.StringVar(&f.creds, "creds", "", `credentials JSON {"email","password"} (default: BULKMAIL_EMAIL/BULKMAIL_PASSWORD)`)
	fs.StringVar(&f.attach, "attach", "", "comma-separated attachments: paths, URLs or s3://bucket/key")
	fs.StringVar(&f.logo, "logo", "", "letterhead logo replacing the configured one")
	fs.StringVar(&f.senderName, "sender-name", "", "sender name (partnership templates)")
	fs.StringVar(&f.senderTitle, "sender-designation", "", "sender designation (partnership templates)")
	fs.BoolVar(&f.reuse, "reuse", false, "send every message over one session")
	fs.DurationVar(&f.delay, "delay", 0, "pause between messages (default 2s with -reuse)")
	fs.BoolVar(&f.yes, "yes", false, "do not ask for confirmation")
	fs.BoolVar(&f.json, "json", false, "print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	fs.Visit(func(fl *flag.Flag) { f.delaySet = f.delaySet || fl.Name == "delay" })
	if f.csv == "" {
		fmt.Fprintln(c.stderr, "send: -csv is required")
		fs.Usage()
		return exitUsage
	}

	summary, err := c.runBatch(ctx, f)
	if summary != nil {
		if perr := c.printSummary(summary, f.json); perr != nil {
			return c.fail(perr)
		}
	}
	if errors.Is(err, errAborted) {
		fmt.Fprintln(c.stderr, "aborted, nothing sent")
		return exitFailure
	}
	if err != nil {
		return c.fail(err)
	}
	return exitOK
}

func (c *cli) runBatch(ctx context.Context, f sendFlags) (*dispatch.Summary, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if f.reuse {
		cfg.Strategy = dispatch.Reuse
	}
	if f.delaySet {
		cfg.Delay = &f.delay
	}

	if cfg.Log.Output == nil {
		cfg.Log.Output = c.stderr
	}
	log := logger.New(cfg.Log)

	branding, err := cfg.Branding()
	if err != nil {
		return nil, err
	}

	kind, err := templates.ParseKind(f.template)
	if err != nil {
		return nil, err
	}
	spec, err := templates.Lookup(kind)
	if err != nil {
		return nil, err
	}

	creds, err := loadCredentials(f.creds, c.getenv)
	if err != nil {
		return nil, err
	}

	res, err := loadRecipientsFile(f.csv, spec.RequiredFields)
	if err != nil {
		if res != nil {
			c.printWarnings(res.Warnings)
		}
		return nil, err
	}

	loader, err := cfg.AttachmentLoader()
	if err != nil {
		return nil, err
	}
	attachments, skipped, err := loader.LoadAll(ctx, splitList(f.attach))
	if err != nil {
		return nil, err
	}

	batch := dispatch.Batch{
		Records:     res.Records,
		Spec:        spec,
		Credentials: creds,
		Sender:      dispatch.Sender{Name: f.senderName, Designation: f.senderTitle},
		Attachments: attachments,
		Warnings:    append(res.Warnings, skipped...),
	}
	if f.logo != "" {
		logo, err := loader.Load(ctx, f.logo)
		if err != nil {
			return nil, fmt.Errorf("logo: %w", err)
		}
		batch.Logo = logo.Content
	}

	catalog := templates.NewCatalog(templates.WithButtonColor(cfg.ButtonColor))
	opts := append(cfg.DispatchOptions(), dispatch.WithBranding(branding), dispatch.WithLogger(log))
	d := dispatch.New(c.transport(cfg), catalog, opts...)

	if err := d.Validate(batch); err != nil {
		return nil, err
	}

	if cfg.SPFCheck && c.resolver != nil {
		if err := dnsverify.CheckSPF(ctx, c.resolver, creds.Email, cfg.SPFIncludes...); err != nil {
			fmt.Fprintf(c.stderr, "warning: %v; messages may be marked as spam\n", err)
		}
	}

	if !f.yes {
		ok, err := c.confirm(fmt.Sprintf("Send %q to %d recipients from %s (%s)?",
			spec.Title, len(batch.Records), creds.Email, d.Strategy()))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errAborted
		}
	}

	return d.Run(ctx, batch)
}

func loadRecipientsFile(path string, required []string) (*recipients.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return recipients.LoadFile(path, f, required)
}

func (c *cli) confirm(question string) (bool, error) {
	fmt.Fprintf(c.stderr, "%s [y/N] ", question)
	line, err := bufio.NewReader(c.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (c *cli) printSummary(s *dispatch.Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	c.printWarnings(s.Warnings)
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tSTATUS\tMESSAGE")
	for _, r := range s.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Email, r.Status, r.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "\nBatch %s: %d sent, %d failed\n", s.BatchID, s.SentCount, s.FailedCount)
	return nil
}

func (c *cli) printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(c.stderr, "warning: %s\n", w)
	}
}

func (c *cli) getenv(key string) string {
	if c.environ != nil {
		return c.environ[key]
	}
	return os.Getenv(key)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
