package helpers

import (
	"math/rand"
	"strings"
)

// Fuzzer provides utilities for generating adversarial input strings
type Fuzzer struct {
	rnd *rand.Rand
}

// NewFuzzer creates a new Fuzzer with the given seed
func NewFuzzer(seed int64) *Fuzzer {
	return &Fuzzer{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

// FuzzName generates guild and username test cases. Both share the 3 to 25
// character alphanumeric rule; usernames additionally allow hyphens.
func (f *Fuzzer) FuzzName() []string {
	cases := []string{
		// Empty and boundary cases
		"",
		"a",
		"ab",
		"abc",
		strings.Repeat("a", 25),
		strings.Repeat("a", 26),
		"a_very_long_guild_name_that_exceeds_the_limit",

		// Separators
		"go_lang",
		"go-lang",
		"+golang",
		"@alice",
		"go lang",
		"go.lang",
		"go/lang",

		// Whitespace padding
		" golang",
		"golang ",
	}
	cases = append(cases, f.GenerateSQLInjections()...)
	cases = append(cases, f.GeneratePathTraversals()...)
	cases = append(cases, f.GenerateUnicodeAttacks()...)
	cases = append(cases, f.GenerateControlCharStrings()...)
	for i := 0; i < 20; i++ {
		cases = append(cases, f.GenerateRandomString(1+f.rnd.Intn(30), i%2 == 0))
	}
	return cases
}

// FuzzID generates base36 item id test cases
func (f *Fuzzer) FuzzID() []string {
	cases := []string{
		// Empty and boundary cases
		"",
		"0",
		"z",
		strings.Repeat("a", 1000),

		// Case and separators
		"ABC123",
		"abc-123",
		"abc_123",
		"abc.123",
		"abc 123",

		// Fullnames instead of ids
		"t2_abc123",
		"t3_abc123",

		// Mixed valid/invalid
		"abc123!",
		"abc123?x=1",
		"abc123#frag",
		"abc%2F123",
	}
	cases = append(cases, f.GenerateSQLInjections()...)
	cases = append(cases, f.GeneratePathTraversals()...)
	cases = append(cases, f.GenerateUnicodeAttacks()...)
	cases = append(cases, f.GenerateControlCharStrings()...)
	for i := 0; i < 20; i++ {
		cases = append(cases, f.GenerateRandomString(1+f.rnd.Intn(12), i%3 == 0))
	}
	return cases
}

// FuzzUserAgent generates malicious User-Agent test cases
func (f *Fuzzer) FuzzUserAgent() []string {
	return []string{
		// Empty
		"",

		// Header injection via newlines
		"MyApp/1.0\nX-Evil-Header: injected",
		"MyApp/1.0\rX-Evil-Header: injected",
		"MyApp/1.0\r\nX-Evil-Header: injected",
		"MyApp/1.0\r\nContent-Length: 0\r\n\r\nGET /evil HTTP/1.1",

		// Extremely long
		strings.Repeat("a", 256),
		strings.Repeat("a", 257),
		strings.Repeat("a", 10000),

		// Control characters
		"MyApp\x00/1.0",
		"MyApp\x1B/1.0",
		"MyApp\x7F/1.0",

		// Unicode
		"MyApp\u202E/1.0",
		"приложение/1.0",
	}
}

// GenerateRandomString generates a random string of the given length with specified character types
func (f *Fuzzer) GenerateRandomString(length int, includeSpecial bool) string {
	const (
		letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"
		special = "!@#$%^&*()+=[]{}|;':\",./<>?`~ "
	)

	charset := letters
	if includeSpecial {
		charset += special
	}

	b := make([]byte, length)
	for i := range b {
		b[i] = charset[f.rnd.Intn(len(charset))]
	}
	return string(b)
}

// GenerateControlCharStrings generates strings carrying control characters
func (f *Fuzzer) GenerateControlCharStrings() []string {
	return []string{
		"abc\x00def",
		"abc\ndef",
		"abc\rdef",
		"abc\tdef",
		"abc\x1Bdef",
		"abc\x7Fdef",
		"\x00abcdef",
		"abcdef\x00",
	}
}

// GenerateUnicodeAttacks generates lookalike and direction-override strings
func (f *Fuzzer) GenerateUnicodeAttacks() []string {
	return []string{
		"café",
		"тест",
		"测试名称",
		"🚀rocket",
		"test\u202Eadmin",
		"test\u200Badmin",
		"аdmin", // Cyrillic a
		"ａｄｍｉｎ",
		"admin\uFEFF",
	}
}

// GenerateSQLInjections generates common SQL injection payloads
func (f *Fuzzer) GenerateSQLInjections() []string {
	return []string{
		"golang'; DROP TABLE--",
		"golang' OR '1'='1",
		"golang\"; DELETE FROM users--",
		"'; UNION SELECT * FROM posts--",
		"1; SELECT pg_sleep(10)",
	}
}

// GeneratePathTraversals generates path traversal payloads
func (f *Fuzzer) GeneratePathTraversals() []string {
	return []string{
		"../../etc/passwd",
		"..\\..\\windows\\system32",
		"/etc/passwd",
		"%2e%2e%2fsecret",
		"..",
	}
}
