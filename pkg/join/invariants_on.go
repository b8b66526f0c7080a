//go:build joininvariants

package join

const invariantsEnabled = true
