package progression

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultIssuer is the organization name printed on every credential.
const DefaultIssuer = "SkillForge Academy"

// NewCredentialID returns a human-readable random identifier such as
// SF-1A2B-3C4D-5E6F-7A8B.
func NewCredentialID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "SF-" + raw[0:4] + "-" + raw[4:8] + "-" + raw[8:12] + "-" + raw[12:16]
}

// CourseName turns a free-form topic into the title printed on a credential.
func CourseName(topic string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(topic), " "))
}

// Fingerprint computes a keyed blake2b digest over the credential fields.
// The key may be empty, in which case the digest is a plain checksum.
func Fingerprint(c Credential, key []byte) string {
	h, err := blake2b.New256(key)
	if err != nil {
		// Only reachable with a key longer than 64 bytes.
		h, _ = blake2b.New256(key[:blake2b.Size])
	}
	for _, part := range []string{
		c.ID,
		c.HolderName,
		c.CourseName,
		string(c.Difficulty),
		c.IssueDate.UTC().Format(time.DateOnly),
		c.IssuerSignature,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyCredential checks a presented fingerprint against the credential.
func VerifyCredential(c Credential, fingerprint string, key []byte) bool {
	want := Fingerprint(c, key)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(fingerprint))) == 1
}

// issueDate truncates a timestamp to its UTC calendar date.
func issueDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
