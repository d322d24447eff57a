package postgres

import "strings"

// likeEscaper escapes the LIKE metacharacters using the default escape
// character of postgres.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func likeContains(s string) string { return "%" + escapeLike(s) + "%" }
func likePrefix(s string) string { return escapeLike(s) + "%" }
func likeSuffix(s string) string { return "%" + escapeLike(s) }
