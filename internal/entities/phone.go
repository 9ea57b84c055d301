package entities

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// NormalizePhone turns a WhatsApp JID ("5511999998888@s.whatsapp.net")
// into its canonical digits-only key ("5511999998888").
func NormalizePhone(jid string) string {
	jid = strings.TrimSpace(jid)
	user := jid
	if parsed, err := types.ParseJID(jid); err == nil && strings.Contains(jid, "@") {
		user = parsed.User
	} else {
		user = strings.TrimSuffix(user, "@"+types.DefaultUserServer)
	}
	// Device suffix ("5511...:12") is not part of the number.
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	return digitsOnly(user)
}

func digitsOnly(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
