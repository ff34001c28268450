// Package dispatch turns a recipient list and a template into one
// delivered email per recipient.
//
// A Dispatcher validates the batch, applies the attachment size policy,
// then for each record builds the template fields, renders the body,
// interpolates the subject and hands the message to a mailer.Session.
// Records are processed one at a time in input order.
//
//	d := dispatch.New(smtp.NewFailover(smtp.DefaultCandidates), templates.NewCatalog(),
//		dispatch.WithStrategy(dispatch.Reuse),
//		dispatch.WithLogger(log),
//	)
//	summary, err := d.Run(ctx, dispatch.Batch{
//		Records:     res.Records,
//		Spec:        spec,
//		Credentials: mailer.Credentials{Email: "hr@dazzlohr.in", Password: token},
//	})
//
// The returned error is batch-level only: invalid input, oversized
// attachments, a template that fails to render, or cancellation.
// Per-recipient delivery failures are classified with mailer.Classify and
// recorded in Summary.Results.
package dispatch
