package forge

import "strings"

// TokenKind classifies a GitHub credential by its prefix, adapted from the
// teacher's pkg/stringutil PAT classification into a forge-authenticated
// credential check instead of a Copilot-eligibility check.
type TokenKind string

const (
	TokenFineGrained TokenKind = "fine-grained-pat"
	TokenClassic     TokenKind = "classic-pat"
	TokenOAuth       TokenKind = "oauth"
	TokenUnknown     TokenKind = "unknown"
)

// ClassifyToken inspects a credential's prefix to report what kind of
// GitHub token it is.
func ClassifyToken(token string) TokenKind {
	switch {
	case strings.HasPrefix(token, "github_pat_"):
		return TokenFineGrained
	case strings.HasPrefix(token, "ghp_"):
		return TokenClassic
	case strings.HasPrefix(token, "gho_"):
		return TokenOAuth
	case token == "":
		return TokenUnknown
	default:
		return TokenUnknown
	}
}
