// Package format turns Signal records into Google Chat message text.
package format

import (
	"fmt"
	"regexp"
	"strings"

	"signalchat/internal/domain"
)

// SignatureElided replaces PGP signature blocks in record bodies.
const SignatureElided = "[PGP SIGNATURE]"

var pgpSignature = regexp.MustCompile(`(?s)-----BEGIN PGP SIGNATURE-----.*?-----END PGP SIGNATURE-----`)

// Normalize cleans up a raw subject and body for chat display.
func Normalize(subject, body string) (string, string) {
	subject = strings.ReplaceAll(subject, `\t`, "")
	// The API delivers escape sequences as literal text. Carriage returns
	// go first so "\r\n" does not turn into two line breaks.
	body = strings.ReplaceAll(body, `\r`, "")
	body = strings.ReplaceAll(body, `\n`, "\n")
	body = strings.ReplaceAll(body, `\t`, "\t")
	body = pgpSignature.ReplaceAllLiteralString(body, SignatureElided)
	return subject, body
}

// Caption renders a record as a chat message: bold heading, italic
// timestamp line, blank line, body. Edited records show the original
// publish time struck through followed by the update time.
func Caption(r domain.Record) string {
	subject, body := Normalize(r.Heading(), r.Body)

	if !r.Edited() {
		return fmt.Sprintf("*%s*\n_公開日時：%s_\n\n%s", subject, r.CreatedAt, body)
	}
	return fmt.Sprintf("*%s*\n_~公開日時：%s~　更新日時：%s_\n\n%s", subject, r.CreatedAt, r.UpdatedAt, body)
}
