package service

import (
	"regexp"
	"strings"
	"unicode"

	"trade_ledger/internal/models"
)

var (
	reOpen  = regexp.MustCompile(`(?i)\bopen\b`)
	reClose = regexp.MustCompile(`(?i)\bclose\b`)
	reLong  = regexp.MustCompile(`(?i)\blong\b`)
	reShort = regexp.MustCompile(`(?i)\bshort\b`)

	reTP = regexp.MustCompile(`(?i)\b(tp|take profit|take-profit)\b`)
	reSL = regexp.MustCompile(`(?i)\b(sl|stop loss|stop-loss|stop)\b`)

	reWS = regexp.MustCompile(`\s+`)
)

// normalizeSide cleans the odd whitespace and dashes that show up in
// exchange export cells before the regexes run.
func normalizeSide(s string) string {
	r := strings.NewReplacer(
		" ", " ", // NBSP
		"​", "", // zero-width space
		"‌", "", // zero-width non-joiner
		"‍", "", // zero-width joiner
		"—", "-", // em dash
		"–", "-", // en dash
	)
	s = r.Replace(s)

	var b strings.Builder
	for _, ch := range s {
		if unicode.IsPrint(ch) {
			b.WriteRune(ch)
		}
	}
	s = strings.TrimSpace(b.String())
	return reWS.ReplaceAllString(s, " ")
}

// inferRoleAndDirection reads a side cell like "Buy to Open Long" or
// "Close Short (TP)" and extracts the open/close role, the long/short
// direction and a TP/SL reason when one is present. Empty values mean the
// cell did not carry that piece of information.
func inferRoleAndDirection(side string) (models.Role, models.Direction, string) {
	s := normalizeSide(side)
	if s == "" {
		return "", "", ""
	}

	var role models.Role
	if reOpen.MatchString(s) {
		role = models.RoleOpen
	} else if reClose.MatchString(s) {
		role = models.RoleClose
	}

	var direction models.Direction
	if reLong.MatchString(s) {
		direction = models.DirectionLong
	} else if reShort.MatchString(s) {
		direction = models.DirectionShort
	}

	reason := ""
	if reTP.MatchString(s) {
		reason = "TP"
	} else if reSL.MatchString(s) {
		reason = "SL"
	}

	return role, direction, reason
}
