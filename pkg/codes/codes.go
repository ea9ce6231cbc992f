// Package codes generates and parses assignment access codes.
//
// A full code looks like MHS4A-EN-0042-7F: project tag, the literal EN
// segment, a zero-padded per-project serial, and a two-character checksum.
// The checksum is keyed with a server secret so codes cannot be forged by
// guessing serials.
package codes

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// stopwords excluded when deriving a project tag from its name.
var stopwords = map[string]struct{}{
	"THE": {}, "AND": {}, "FOR": {}, "WITH": {},
}

// ProjectTag derives a short stable tag from a project name: the first
// letters of up to three significant words plus two hex characters of the
// name's SHA-256, so similarly named projects still get distinct tags.
func ProjectTag(name string) string {
	var initials strings.Builder
	for _, word := range strings.Fields(strings.ToUpper(name)) {
		word = strings.Map(keepLetters, word)
		if len(word) < 3 {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		initials.WriteByte(word[0])
		if initials.Len() == 3 {
			break
		}
	}
	if initials.Len() == 0 {
		initials.WriteString("PRJ")
	}
	sum := sha256.Sum256([]byte(strings.ToUpper(strings.TrimSpace(name))))
	return initials.String() + strings.ToUpper(hex.EncodeToString(sum[:1]))
}

func keepLetters(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r
	}
	return -1
}

// Checksum computes the two-character keyed checksum for an assignment code.
func Checksum(secret string, projectID, enumeratorID int64, serial int) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d|%d|%d", projectID, enumeratorID, serial)
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)[:1]))
}

// Generate builds the full access code for an assignment.
func Generate(secret, projectTag string, projectID, enumeratorID int64, serial int) string {
	return fmt.Sprintf("%s-EN-%04d-%s",
		strings.ToUpper(projectTag), serial,
		Checksum(secret, projectID, enumeratorID, serial))
}

// Parsed is the decomposed form of a full access code.
type Parsed struct {
	ProjectTag string
	Serial     int
	Checksum   string
}

// Parse splits a full access code into its segments. It does not verify the
// checksum; use Verify once the assignment's project and enumerator are known.
func Parse(code string) (Parsed, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(code)), "-")
	if len(parts) != 4 || parts[1] != "EN" {
		return Parsed{}, fmt.Errorf("malformed assignment code %q", code)
	}
	serial, err := strconv.Atoi(parts[2])
	if err != nil || serial <= 0 {
		return Parsed{}, fmt.Errorf("malformed assignment code serial %q", parts[2])
	}
	if parts[0] == "" || len(parts[3]) != 2 {
		return Parsed{}, fmt.Errorf("malformed assignment code %q", code)
	}
	return Parsed{ProjectTag: parts[0], Serial: serial, Checksum: parts[3]}, nil
}

// Verify reports whether a parsed code's checksum matches the expected
// keyed checksum for the given project and enumerator.
func Verify(secret string, p Parsed, projectID, enumeratorID int64) bool {
	expected := Checksum(secret, projectID, enumeratorID, p.Serial)
	return hmac.Equal([]byte(expected), []byte(p.Checksum))
}

// IsFullCode reports whether the input has the shape of a full access code,
// as opposed to a bare enumerator label.
func IsFullCode(code string) bool {
	_, err := Parse(code)
	return err == nil
}
