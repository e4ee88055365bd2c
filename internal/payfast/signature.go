// Package payfast implements the PayFast merchant integration: payload
// signing, the browser handoff form, and server-side notification
// validation.
package payfast

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Sign computes the PayFast parameter signature over a flat field set.
//
// Fields with empty values are dropped, as is any "signature" field
// carried in the input. The remaining fields are sorted by name,
// form-urlencoded (spaces become '+', everything else percent-encoded
// from UTF-8), joined with '&', and a trimmed non-empty passphrase is
// appended last. The digest is MD5, returned as lowercase hex — this
// is the vendor's fixed contract, not a choice.
func Sign(fields map[string]string, passphrase string) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v == "" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fields[k]))
	}
	if pp := strings.TrimSpace(passphrase); pp != "" {
		b.WriteString("&passphrase=")
		b.WriteString(url.QueryEscape(pp))
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
