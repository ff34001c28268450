// Package templates is the catalog of email kinds: required recipient
// columns, subject lines, letterhead profiles and the embedded markdown
// bodies and HTML layouts they render with.
package templates
