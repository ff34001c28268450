package dnsverify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrDNSLookupFailed     = errors.New("dnsverify: dns lookup failed")
	ErrTXTRecordNotFound   = errors.New("dnsverify: txt record not found")
	ErrSPFNotFound         = errors.New("dnsverify: no spf record")
	ErrSenderNotAuthorized = errors.New("dnsverify: spf record does not include the mail provider")
	ErrInvalidInput        = errors.New("dnsverify: invalid domain")
)

// Resolver looks up TXT records. *net.Resolver satisfies it.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Domain returns the lowercased domain part of an email address.
func Domain(email string) (string, error) {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return "", ErrInvalidInput
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:])), nil
}

// SPFRecord returns the domain's "v=spf1" TXT record.
func SPFRecord(ctx context.Context, r Resolver, domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return "", ErrInvalidInput
	}
	if r == nil {
		r = net.DefaultResolver
	}

	records, err := r.LookupTXT(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return "", fmt.Errorf("%w: %s", ErrTXTRecordNotFound, domain)
		}
		return "", fmt.Errorf("%w: %v", ErrDNSLookupFailed, err)
	}

	for _, rec := range records {
		rec = strings.TrimSpace(rec)
		if rec == "v=spf1" || strings.HasPrefix(strings.ToLower(rec), "v=spf1 ") {
			return rec, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSPFNotFound, domain)
}

// CheckSPF verifies that the sender's domain publishes an SPF record
// naming one of includes, e.g. "zoho.in" matches "include:zoho.in" and
// "include:spf.zoho.in". With no includes only the record's presence is checked.
func CheckSPF(ctx context.Context, r Resolver, email string, includes ...string) error {
	domain, err := Domain(email)
	if err != nil {
		return err
	}
	record, err := SPFRecord(ctx, r, domain)
	if err != nil {
		return err
	}
	if len(includes) == 0 {
		return nil
	}

	for _, term := range strings.Fields(strings.ToLower(record)) {
		target, ok := strings.CutPrefix(term, "include:")
		if !ok {
			target, ok = strings.CutPrefix(term, "+include:")
		}
		if !ok {
			continue
		}
		for _, inc := range includes {
			inc = strings.ToLower(strings.TrimSpace(inc))
			if inc != "" && (target == inc || strings.HasSuffix(target, "."+inc)) {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrSenderNotAuthorized, domain)
}
