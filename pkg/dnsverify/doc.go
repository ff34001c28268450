// Package dnsverify checks a sender domain's DNS before mail goes out.
//
// Mail sent through a provider that the sender domain's SPF record does
// not name is likely to land in spam. CheckSPF looks up the TXT records
// of the address's domain and reports:
//
//   - ErrInvalidInput: the address has no domain
//   - ErrTXTRecordNotFound: the domain has no TXT records
//   - ErrSPFNotFound: TXT records exist but none is "v=spf1 ..."
//   - ErrSenderNotAuthorized: the SPF record includes none of the given providers
//   - ErrDNSLookupFailed: the lookup itself failed
//
// Usage:
//
//	err := dnsverify.CheckSPF(ctx, net.DefaultResolver, "hr@dazzlohr.in", "zoho.in", "zoho.com")
package dnsverify
