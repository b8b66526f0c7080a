//go:build !joininvariants

package join

// invariantsEnabled turns on per-row assertions that are too expensive for
// production builds. Build with -tags joininvariants to enable them.
const invariantsEnabled = false
