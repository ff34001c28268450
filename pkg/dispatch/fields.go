package dispatch

import (
	"maps"
	"strconv"
	"time"

	"github.com/dazzlo/bulkmail/pkg/recipients"
	"github.com/dazzlo/bulkmail/pkg/sanitizer"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

// FormatDate renders t as "2nd January 2006".
func FormatDate(t time.Time) string {
	return strconv.Itoa(t.Day()) + ordinal(t.Day()) + " " + t.Format("January 2006")
}

func ordinal(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// fieldSet holds the values shared by every record of a batch.
type fieldSet map[string]string

func batchFields(spec templates.Spec, brand templates.Branding, sender Sender, senderEmail string, now time.Time, hasLogo bool) fieldSet {
	f := fieldSet(brand.Fields())
	f["date"] = FormatDate(now)
	f["year"] = strconv.Itoa(now.Year())
	if hasLogo {
		f["logo_cid"] = templates.LogoContentID
	}
	if spec.NeedsSender {
		if sender.Email == "" {
			sender.Email = senderEmail
		}
		f["sender_name"] = sanitizer.StripHTML(sender.Name)
		f["sender_designation"] = sanitizer.StripHTML(sender.Designation)
		f["sender_email"] = sanitizer.StripHTML(sender.Email)
	}
	return f
}

// forRecord merges the record into the batch fields. Batch fields win so
// a spreadsheet column cannot replace the letterhead or the date.
func (f fieldSet) forRecord(rec recipients.Record) map[string]string {
	out := sanitizer.StripFields(rec.Fields)
	if out == nil {
		out = make(map[string]string, len(f)+1)
	}
	maps.Copy(out, f)
	out["email"] = rec.Email
	return out
}
