// Package responses writes API replies. Failures use RFC 7807 Problem Details.
package responses
