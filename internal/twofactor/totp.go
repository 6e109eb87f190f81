package twofactor

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // SHA-1 is what RFC 6238 authenticator apps implement
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/uniuri"
)

const (
	// Period is the TOTP time step in seconds.
	Period = 30

	// Digits is the number of digits in a generated code.
	Digits = 6

	// BackupCodeCount is the number of backup codes issued per enrollment.
	BackupCodeCount = 10

	// secretLength is the number of random bytes in a new TOTP secret.
	secretLength = 20

	// DefaultIssuer is the issuer shown in authenticator apps when the
	// configuration does not override it.
	DefaultIssuer = "AffiliateAggregator"
)

// base32Alphabet is the RFC 4648 alphabet. Secrets are encoded without
// padding, as authenticator apps expect.
const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// hexUpper is the charset for backup codes.
var hexUpper = []byte("0123456789ABCDEF")

// GenerateSecret returns a new random TOTP secret: 20 cryptographically
// random bytes, base32 encoded without padding.
func GenerateSecret() string {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		log.Fatal().Err(err).Msg("failed to read random bytes for TOTP secret")
	}

	return base32Encode(buf)
}

// GenerateCode derives the 6-digit code for the given secret at the given
// time. The counter is the number of whole 30-second periods since the Unix
// epoch, HMAC-SHA1 signed and dynamically truncated per RFC 6238.
func GenerateCode(secret string, at time.Time) string {
	step := at.Unix() / Period

	counter := make([]byte, 8)
	binary.BigEndian.PutUint64(counter, uint64(step))

	mac := hmac.New(sha1.New, base32Decode(secret))
	mac.Write(counter)
	sum := mac.Sum(nil)

	// Dynamic truncation: low nibble of the last byte picks the offset,
	// four bytes from there are masked to 31 bits.
	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", Digits, value%1_000_000)
}

// Verify reports whether code matches the secret in the current period or
// the adjacent one on either side, tolerating up to one period of clock
// drift.
func Verify(secret, code string) bool {
	return verifyAt(secret, code, time.Now())
}

func verifyAt(secret, code string, now time.Time) bool {
	for i := -1; i <= 1; i++ {
		at := now.Add(time.Duration(i) * Period * time.Second)
		if GenerateCode(secret, at) == code {
			return true
		}
	}

	return false
}

// GenerateBackupCodes returns 10 fresh single-use recovery codes, each 8
// uppercase hex characters formatted XXXX-XXXX.
func GenerateBackupCodes() []string {
	codes := make([]string, 0, BackupCodeCount)

	for i := 0; i < BackupCodeCount; i++ {
		raw := uniuri.NewLenChars(8, hexUpper)
		codes = append(codes, raw[:4]+"-"+raw[4:])
	}

	return codes
}

// normalizeBackupCode reduces user input to the canonical XXXX-XXXX form:
// non-alphanumerics stripped, uppercased, dash re-inserted after the fourth
// character.
func normalizeBackupCode(code string) string {
	var b strings.Builder

	for _, r := range strings.ToUpper(code) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	n := b.String()
	if len(n) <= 4 {
		return n + "-"
	}

	return n[:4] + "-" + n[4:]
}

// ProvisioningURI builds the otpauth:// URI encoded into QR codes for
// authenticator apps. The parameter order and encoding are byte-compatible
// with standard apps and must stay that way.
func ProvisioningURI(secret, email, issuer string) string {
	if issuer == "" {
		issuer = DefaultIssuer
	}

	encIssuer := uriComponent(issuer)
	encEmail := uriComponent(email)

	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=SHA1&digits=%d&period=%d",
		encIssuer, encEmail, secret, encIssuer, Digits, Period)
}

// uriComponent percent-encodes like JavaScript's encodeURIComponent: spaces
// become %20, never '+'.
func uriComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// base32Encode encodes buf with the RFC 4648 alphabet, no padding.
func base32Encode(buf []byte) string {
	var (
		bits  int
		value uint32
		out   strings.Builder
	)

	for _, b := range buf {
		value = value<<8 | uint32(b)
		bits += 8

		for bits >= 5 {
			out.WriteByte(base32Alphabet[(value>>(bits-5))&31])
			bits -= 5
		}
	}

	if bits > 0 {
		out.WriteByte(base32Alphabet[(value<<(5-bits))&31])
	}

	return out.String()
}

// base32Decode decodes an RFC 4648 string. Trailing padding is stripped,
// input is uppercased, and characters outside the alphabet are skipped.
func base32Decode(encoded string) []byte {
	var (
		bits  int
		value uint32
		out   []byte
	)

	cleaned := strings.ToUpper(strings.TrimRight(encoded, "="))

	for i := 0; i < len(cleaned); i++ {
		idx := strings.IndexByte(base32Alphabet, cleaned[i])
		if idx == -1 {
			continue
		}

		value = value<<5 | uint32(idx)
		bits += 5

		if bits >= 8 {
			out = append(out, byte((value>>(bits-8))&255))
			bits -= 8
		}
	}

	return out
}
