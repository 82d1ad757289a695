package handlers

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

const (
	msgContentBlocked      = "content_blocked"
	msgInsufficientBalance = "insufficient_balance"
	msgNoActiveBackend     = "no_active_backend"
	msgInternal            = "internal"
	msgTimeout             = "timeout"
)

func init() {
	for _, m := range []struct {
		key    string
		en, id string
	}{
		{msgContentBlocked,
			"The request was declined by the content safety filter. Please adjust the prompt or reference images.",
			"Permintaan ditolak oleh filter keamanan konten. Silakan ubah prompt atau gambar referensi."},
		{msgInsufficientBalance,
			"Not enough credits or points for this generation.",
			"Kredit atau poin tidak cukup untuk pembuatan gambar ini."},
		{msgNoActiveBackend,
			"Image generation is temporarily unavailable.",
			"Pembuatan gambar sedang tidak tersedia."},
		{msgInternal,
			"Something went wrong. Please try again.",
			"Terjadi kesalahan. Silakan coba lagi."},
		{msgTimeout,
			"The image took too long to generate. Please try again.",
			"Gambar terlalu lama dibuat. Silakan coba lagi."},
	} {
		_ = message.SetString(language.English, m.key, m.en)
		_ = message.SetString(language.Indonesian, m.key, m.id)
	}
}

// localizedMessage returns the caller-facing message for err. Kinds without a
// catalog entry keep the sanitized error text.
func localizedMessage(locale string, err error) string {
	key := ""
	switch domain.KindOf(err) {
	case domain.KindContentBlocked:
		key = msgContentBlocked
	case domain.KindInsufficientBalance:
		key = msgInsufficientBalance
	case domain.KindNoActiveBackend:
		key = msgNoActiveBackend
	case domain.KindTimeout:
		key = msgTimeout
	case domain.KindInternal, domain.KindSettlementStep:
		key = msgInternal
	default:
		return domain.UserMessage(err)
	}
	tag, perr := language.Parse(locale)
	if perr != nil {
		tag = language.English
	}
	return message.NewPrinter(tag).Sprintf(message.Key(key, key))
}
