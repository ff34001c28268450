package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/dazzlo/bulkmail/pkg/dispatch"
	"github.com/dazzlo/bulkmail/pkg/recipients"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

func (c *cli) sample(args []string) int {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	kindName := fs.String("template", string(templates.Interview), "template kind")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	kind, err := templates.ParseKind(*kindName)
	if err != nil {
		return c.fail(err)
	}
	data, err := templates.SampleCSV(kind)
	if err != nil {
		return c.fail(err)
	}
	_, _ = c.stdout.Write(data)
	return exitOK
}

// preview prints the message the first recipient would receive.
func (c *cli) preview(args []string) int {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	kindName := fs.String("template", string(templates.Interview), "template kind")
	csvPath := fs.String("csv", "", "recipients file (default: the template's sample)")
	senderName := fs.String("sender-name", "Your Name", "sender name for partnership templates")
	senderTitle := fs.String("sender-designation", "Business Development Manager", "sender designation for partnership templates")
	asHTML := fs.Bool("html", false, "print the HTML part instead of plain text")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return c.fail(err)
	}
	branding, err := cfg.Branding()
	if err != nil {
		return c.fail(err)
	}

	kind, err := templates.ParseKind(*kindName)
	if err != nil {
		return c.fail(err)
	}
	spec, err := templates.Lookup(kind)
	if err != nil {
		return c.fail(err)
	}

	var res *recipients.Result
	if *csvPath == "" {
		sample, err := templates.SampleCSV(kind)
		if err != nil {
			return c.fail(err)
		}
		res, err = recipients.Load(bytes.NewReader(sample), spec.RequiredFields)
		if err != nil {
			return c.fail(err)
		}
	} else {
		f, err := os.Open(*csvPath)
		if err != nil {
			return c.fail(err)
		}
		defer f.Close()
		res, err = recipients.LoadFile(*csvPath, f, spec.RequiredFields)
		if err != nil {
			return c.fail(err)
		}
	}

	catalog := templates.NewCatalog(templates.WithButtonColor(cfg.ButtonColor))
	d := dispatch.New(nil, catalog, dispatch.WithBranding(branding))
	p, err := d.Preview(spec, res.Records[0], dispatch.Sender{Name: *senderName, Designation: *senderTitle})
	if err != nil {
		return c.fail(err)
	}

	fmt.Fprintf(c.stdout, "To: %s\nSubject: %s\n\n", res.Records[0].Email, p.Subject)
	if *asHTML {
		fmt.Fprintln(c.stdout, p.HTML)
	} else {
		fmt.Fprintln(c.stdout, p.Text)
	}
	return exitOK
}
