// Package web serves the browser front end and JSON API for sending
// template batches.
//
// Routes:
//
//	GET  /                               upload form
//	POST /send                           multipart batch, HTML results page
//	GET  /preview/{kind}                 template rendered with sample data
//	POST /validate_credentials           open and close a session, no mail sent
//	GET  /api/templates                  template catalog as JSON
//	GET  /api/templates/{kind}/sample.csv
//	POST /api/batches                    multipart batch, JSON summary
//	GET  /health/live, /health/ready
//
// The batch form carries template_type, email, password, sender_name,
// sender_designation, csv_file (CSV or XLSX) or csv_notepad, logo_file
// and attachments. Handlers return errors; domain errors are mapped to
// HTTP status codes by AsHTTPError.
package web
